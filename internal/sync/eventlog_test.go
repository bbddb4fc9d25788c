package syncx

import (
	"context"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/db"
)

func TestEventRepo_RecordAndList(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := NewEventRepo(conn, "", func() time.Time { return fixed })

	if err := repo.Record(ctx, "quiz_submitted", "c1/s1", map[string]int{"best_score": 70}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Record(ctx, "scorm_reported", "c1/s1", map[string]int{"best_score": 76}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Record(ctx, "recheck", "c1/s2", nil); err != nil {
		t.Fatal(err)
	}

	got, err := repo.List(ctx, "c1/s1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Type != "quiz_submitted" || got[1].DataJSON != `{"best_score":76}` {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[0].SiteID != "local" || got[0].CreatedAt != fixed.Unix() {
		t.Fatalf("defaults not applied: %+v", got[0])
	}
}
