package grading

import (
	"fmt"
	"math"
)

// Strategy decides whether the chosen option ids answer a question correctly.
type Strategy interface {
	Correct(q Question, chosen []string) bool
}

// Scorer routes each question to the Strategy registered for its type.
type Scorer struct {
	strategies map[QuestionType]Strategy
}

// NewScorer installs the built-in strategies. Multiple choice is all-or-nothing:
// a subset or superset of the key earns nothing.
func NewScorer() *Scorer {
	return &Scorer{
		strategies: map[QuestionType]Strategy{
			SingleChoice:   singleChoiceStrategy{},
			TrueFalse:      singleChoiceStrategy{},
			MultipleChoice: exactSetStrategy{},
		},
	}
}

var defaultScorer = NewScorer()

// Score evaluates sub against bank with the default scorer.
func Score(bank QuestionBank, sub Submission) (Result, error) {
	return defaultScorer.Score(bank, sub)
}

// ItemResult is the per-question detail used for UI feedback.
type ItemResult struct {
	QuestionID string  `json:"question_id"`
	Answered   bool    `json:"answered"`
	Correct    bool    `json:"correct"`
	Earned     float64 `json:"earned"`
	Weight     float64 `json:"weight"`
}

type Result struct {
	Percent int          `json:"percent"`
	Earned  float64      `json:"earned"`
	Total   float64      `json:"total"`
	Items   []ItemResult `json:"items"`
}

// Correctness lists per-question correctness in bank order.
func (r Result) Correctness() []bool {
	out := make([]bool, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Correct
	}
	return out
}

func (s *Scorer) Score(bank QuestionBank, sub Submission) (Result, error) {
	if err := bank.Validate(); err != nil {
		return Result{}, err
	}
	res := Result{Items: make([]ItemResult, 0, len(bank))}
	for _, q := range bank {
		w := q.weight()
		item := ItemResult{QuestionID: q.ID, Weight: w}
		res.Total += w

		chosen := dedupe(sub.Answers[q.ID])
		if len(chosen) > 0 {
			item.Answered = true
			st, ok := s.strategies[q.Type]
			if !ok {
				return Result{}, fmt.Errorf("no strategy for question type %q", q.Type)
			}
			if st.Correct(q, chosen) {
				item.Correct = true
				item.Earned = w
				res.Earned += w
			}
		}
		res.Items = append(res.Items, item)
	}
	res.Percent = int(math.Round(100 * res.Earned / res.Total))
	return res, nil
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Correct(q Question, chosen []string) bool {
	return len(chosen) == 1 && len(q.Correct) == 1 && chosen[0] == q.Correct[0]
}

type exactSetStrategy struct{}

func (exactSetStrategy) Correct(q Question, chosen []string) bool {
	return setEqual(toSet(q.Correct), toSet(chosen))
}

// helpers

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
