package grading

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mind-engage/mindengage-completion/internal/completion"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
	Correct []string     `json:"correct,omitempty"`
	Weight  float64      `json:"weight,omitempty"` // 0 means 1
}

func (q Question) weight() float64 {
	if q.Weight == 0 {
		return 1
	}
	return q.Weight
}

// QuestionBank is the ordered question list of one course quiz.
type QuestionBank []Question

// Validate checks every invariant the scorer relies on. Violations wrap
// completion.ErrInvalidConfiguration.
func (b QuestionBank) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("%w: question bank is empty", completion.ErrInvalidConfiguration)
	}
	seen := make(map[string]struct{}, len(b))
	total := 0.0
	for i, q := range b {
		if q.ID == "" {
			return fmt.Errorf("%w: question %d has no id", completion.ErrInvalidConfiguration, i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", completion.ErrInvalidConfiguration, q.ID)
		}
		seen[q.ID] = struct{}{}
		if err := q.validate(); err != nil {
			return fmt.Errorf("%w: question %q: %v", completion.ErrInvalidConfiguration, q.ID, err)
		}
		total += q.weight()
	}
	if total <= 0 {
		return fmt.Errorf("%w: total question weight must be positive", completion.ErrInvalidConfiguration)
	}
	return nil
}

func (q Question) validate() error {
	switch q.Type {
	case SingleChoice, MultipleChoice, TrueFalse:
	default:
		return fmt.Errorf("unknown type %q", q.Type)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("needs at least 2 options, has %d", len(q.Options))
	}
	opts := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if o.ID == "" {
			return fmt.Errorf("option without id")
		}
		if _, dup := opts[o.ID]; dup {
			return fmt.Errorf("duplicate option id %q", o.ID)
		}
		opts[o.ID] = struct{}{}
	}
	if len(q.Correct) == 0 {
		return fmt.Errorf("no correct answer")
	}
	if q.Type != MultipleChoice && len(q.Correct) != 1 {
		return fmt.Errorf("%s needs exactly one correct answer, has %d", q.Type, len(q.Correct))
	}
	for _, c := range q.Correct {
		if _, ok := opts[c]; !ok {
			return fmt.Errorf("correct answer %q is not an option", c)
		}
	}
	if q.Weight < 0 {
		return fmt.Errorf("negative weight %v", q.Weight)
	}
	return nil
}

// WithoutAnswers returns a copy safe to serve to students.
func (b QuestionBank) WithoutAnswers() QuestionBank {
	out := make(QuestionBank, len(b))
	for i, q := range b {
		q.Correct = nil
		out[i] = q
	}
	return out
}

// Submission is one quiz attempt. It is immutable once created.
type Submission struct {
	StudentID   string              `json:"student_id"`
	CourseID    string              `json:"course_id"`
	Answers     map[string][]string `json:"answers"` // question id -> chosen option ids
	SubmittedAt time.Time           `json:"submitted_at"`
}

// Key identifies the submission by student, course and timestamp so replays can be detected.
func (s Submission) Key() string {
	sum := blake2b.Sum256([]byte(s.StudentID + "|" + s.CourseID + "|" + s.SubmittedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}
