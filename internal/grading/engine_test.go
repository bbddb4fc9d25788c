package grading

import (
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/completion"
)

func abcd() []Option {
	return []Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"}}
}

func fiveSingle() QuestionBank {
	bank := QuestionBank{}
	for _, id := range []string{"q1", "q2", "q3", "q4", "q5"} {
		bank = append(bank, Question{ID: id, Type: SingleChoice, Options: abcd(), Correct: []string{"a"}})
	}
	return bank
}

func TestScore_ThreeOfFiveSingleChoice(t *testing.T) {
	sub := Submission{Answers: map[string][]string{
		"q1": {"a"}, "q2": {"a"}, "q3": {"a"}, "q4": {"b"}, "q5": {"c"},
	}}
	res, err := Score(fiveSingle(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Percent != 60 {
		t.Fatalf("expected 60%%, got %d", res.Percent)
	}
	want := []bool{true, true, true, false, false}
	got := res.Correctness()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestScore_MultipleChoiceNoPartialCredit(t *testing.T) {
	bank := QuestionBank{{ID: "m", Type: MultipleChoice, Options: abcd(), Correct: []string{"a", "c"}}}

	cases := []struct {
		name   string
		chosen []string
		want   int
	}{
		{"exact", []string{"c", "a"}, 100},
		{"exact with duplicate", []string{"a", "c", "a"}, 100},
		{"strict subset", []string{"a"}, 0},
		{"strict superset", []string{"a", "b", "c"}, 0},
		{"disjoint", []string{"b", "d"}, 0},
		{"empty", nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Score(bank, Submission{Answers: map[string][]string{"m": tc.chosen}})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Percent != tc.want {
				t.Errorf("expected %d, got %d", tc.want, res.Percent)
			}
		})
	}
}

func TestScore_SingleChoiceRejectsSeveralPicks(t *testing.T) {
	bank := QuestionBank{{ID: "s", Type: TrueFalse, Options: []Option{{ID: "t"}, {ID: "f"}}, Correct: []string{"t"}}}
	res, err := Score(bank, Submission{Answers: map[string][]string{"s": {"t", "f"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Percent != 0 {
		t.Fatalf("expected 0, got %d", res.Percent)
	}
}

func TestScore_WeightsAreProportional(t *testing.T) {
	bank := QuestionBank{
		{ID: "heavy", Type: SingleChoice, Options: abcd(), Correct: []string{"a"}, Weight: 3},
		{ID: "light", Type: SingleChoice, Options: abcd(), Correct: []string{"a"}},
	}
	res, err := Score(bank, Submission{Answers: map[string][]string{"heavy": {"a"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Percent != 75 {
		t.Fatalf("expected 75, got %d", res.Percent)
	}
	if res.Items[1].Answered {
		t.Fatalf("unanswered question reported as answered")
	}
}

func TestScore_Rounding(t *testing.T) {
	bank := fiveSingle()[:3]
	res, err := Score(bank, Submission{Answers: map[string][]string{"q1": {"a"}, "q2": {"a"}}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Percent != 67 {
		t.Fatalf("expected 67, got %d", res.Percent)
	}
}

func TestScore_Deterministic(t *testing.T) {
	bank := fiveSingle()
	sub := Submission{Answers: map[string][]string{"q1": {"a"}, "q3": {"d"}, "q5": {"a"}}}
	first, err := Score(bank, sub)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Score(bank, sub)
		if again.Percent != first.Percent {
			t.Fatalf("run %d: expected %d, got %d", i, first.Percent, again.Percent)
		}
	}
}

func TestValidate_InvalidBanks(t *testing.T) {
	cases := []struct {
		name string
		bank QuestionBank
	}{
		{"empty", QuestionBank{}},
		{"one option", QuestionBank{{ID: "q", Type: SingleChoice, Options: []Option{{ID: "a"}}, Correct: []string{"a"}}}},
		{"missing correct", QuestionBank{{ID: "q", Type: SingleChoice, Options: abcd()}}},
		{"correct not an option", QuestionBank{{ID: "q", Type: SingleChoice, Options: abcd(), Correct: []string{"z"}}}},
		{"two correct on single", QuestionBank{{ID: "q", Type: SingleChoice, Options: abcd(), Correct: []string{"a", "b"}}}},
		{"unknown type", QuestionBank{{ID: "q", Type: "essay", Options: abcd(), Correct: []string{"a"}}}},
		{"duplicate ids", QuestionBank{
			{ID: "q", Type: SingleChoice, Options: abcd(), Correct: []string{"a"}},
			{ID: "q", Type: SingleChoice, Options: abcd(), Correct: []string{"a"}},
		}},
		{"negative weight", QuestionBank{{ID: "q", Type: SingleChoice, Options: abcd(), Correct: []string{"a"}, Weight: -1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Score(tc.bank, Submission{})
			if !errors.Is(err, completion.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestSubmissionKey(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Submission{StudentID: "s1", CourseID: "c1", SubmittedAt: at}
	b := Submission{StudentID: "s1", CourseID: "c1", SubmittedAt: at.In(time.FixedZone("x", 3600)),
		Answers: map[string][]string{"q1": {"a"}}}
	if a.Key() != b.Key() {
		t.Fatalf("same instant in another zone should produce the same key")
	}
	c := Submission{StudentID: "s1", CourseID: "c1", SubmittedAt: at.Add(time.Millisecond)}
	if a.Key() == c.Key() {
		t.Fatalf("different timestamps should produce different keys")
	}
}

func TestWithoutAnswers(t *testing.T) {
	bank := fiveSingle()
	safe := bank.WithoutAnswers()
	if safe[0].Correct != nil {
		t.Fatalf("answer key leaked")
	}
	if bank[0].Correct == nil {
		t.Fatalf("original bank was modified")
	}
}
