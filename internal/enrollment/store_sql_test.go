package enrollment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/db"
)

func openSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := conn.Exec(`INSERT INTO courses (id,title,config_json,questions_json,created_at,updated_at)
		VALUES ('c1','Course','{}','[]',0,0)`); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return NewSQLStore(conn)
}

func TestSQLStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)

	created, err := st.Create(ctx, completion.NewEnrollment("e1", "s1", "c1", now))
	if err != nil {
		t.Fatal(err)
	}
	if created.Version != 1 || created.Status != completion.StatusNotStarted || created.BestScore != nil {
		t.Fatalf("unexpected new enrollment: %+v", created)
	}

	next := created
	next.Status = completion.StatusCompleted
	next.BestScore = completion.IntPtr(76)
	next.QuizScore = completion.IntPtr(70)
	next.ScormScore = completion.IntPtr(100)
	next.CurrentAttempt = 1
	next.CompletedAt = &now
	next.SubmissionKeys = []string{"k1"}
	next.UpdatedAt = now
	saved, err := st.Update(ctx, next, created.Version)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}

	got, err := st.Get(ctx, "s1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != completion.StatusCompleted || *got.BestScore != 76 || *got.ScormScore != 100 ||
		!got.CompletedAt.Equal(now) || !got.HasSubmission("k1") || got.Version != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSQLStore_OptimisticLock(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e, err := st.Create(ctx, completion.NewEnrollment("e1", "s1", "c1", time.Now()))
	if err != nil {
		t.Fatal(err)
	}

	first := e
	first.Status = completion.StatusInProgress
	if _, err := st.Update(ctx, first, e.Version); err != nil {
		t.Fatal(err)
	}
	second := e
	second.Status = completion.StatusFailed
	if _, err := st.Update(ctx, second, e.Version); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("expected ErrStaleWrite, got %v", err)
	}

	ghost := completion.NewEnrollment("e9", "nobody", "c1", time.Now())
	if _, err := st.Update(ctx, ghost, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLStore_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	a, err := st.Create(ctx, completion.NewEnrollment("e1", "s1", "c1", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	b, err := st.Create(ctx, completion.NewEnrollment("e2", "s1", "c1", time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Fatalf("second create replaced the record: %s vs %s", a.ID, b.ID)
	}
	if _, err := st.Get(ctx, "s2", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
