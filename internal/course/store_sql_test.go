package course_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/course"
	"github.com/mind-engage/mindengage-completion/internal/db"
	"github.com/mind-engage/mindengage-completion/internal/grading"
)

func openStore(t *testing.T) *course.SQLStore {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return course.NewSQLStore(conn)
}

func safetyCourse() course.Course {
	return course.Course{
		ID:     "safety-101",
		Title:  "Workplace Safety",
		Config: completion.CourseConfig{PassingScore: 60, QuizWeight: 80, ScormWeight: 20, MaxAttempts: 3, RequiresSignature: true},
		Questions: grading.QuestionBank{{
			ID:      "q1",
			Prompt:  "Fire exits must be kept clear",
			Type:    grading.TrueFalse,
			Options: []grading.Option{{ID: "t", Text: "True"}, {ID: "f", Text: "False"}},
			Correct: []string{"t"},
		}},
	}
}

func TestSQLStore_PutGet(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	if _, err := st.Put(ctx, safetyCourse()); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := st.Get(ctx, "safety-101")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Workplace Safety" || got.Config != safetyCourse().Config {
		t.Fatalf("unexpected course: %+v", got)
	}
	if len(got.Questions) != 1 || len(got.Questions[0].Correct) != 1 {
		t.Fatalf("answer keys lost: %+v", got.Questions)
	}
	if pub := got.Public(); pub.Questions[0].Correct != nil {
		t.Fatalf("public view leaks answers")
	}

	cfg, err := st.CourseConfig(ctx, "safety-101")
	if err != nil || cfg.PassingScore != 60 {
		t.Fatalf("config: %+v, %v", cfg, err)
	}
	bank, err := st.QuestionBank(ctx, "safety-101")
	if err != nil || len(bank) != 1 {
		t.Fatalf("bank: %v, %v", bank, err)
	}
}

func TestSQLStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	c := safetyCourse()
	if _, err := st.Put(ctx, c); err != nil {
		t.Fatal(err)
	}
	c.Config.PassingScore = 75
	if _, err := st.Put(ctx, c); err != nil {
		t.Fatal(err)
	}
	cfg, err := st.CourseConfig(ctx, c.ID)
	if err != nil || cfg.PassingScore != 75 {
		t.Fatalf("expected passing 75, got %+v (%v)", cfg, err)
	}
}

func TestSQLStore_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	bad := safetyCourse()
	bad.Config.ScormWeight = 30
	if _, err := st.Put(ctx, bad); !errors.Is(err, completion.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}

	bad = safetyCourse()
	bad.Questions = nil
	if _, err := st.Put(ctx, bad); !errors.Is(err, completion.ErrInvalidConfiguration) {
		t.Fatalf("expected empty bank rejected, got %v", err)
	}

	scormOnly := safetyCourse()
	scormOnly.Config.QuizWeight, scormOnly.Config.ScormWeight = 0, 100
	scormOnly.Questions = nil
	if _, err := st.Put(ctx, scormOnly); err != nil {
		t.Fatalf("scorm-only course rejected: %v", err)
	}
}

func TestSQLStore_NotFound(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	if _, err := st.Get(ctx, "nope"); !errors.Is(err, course.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.CourseConfig(ctx, "nope"); !errors.Is(err, course.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
