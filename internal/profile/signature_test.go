package profile

import (
	"context"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-completion/internal/db"
)

func TestSQLStore_Signatures(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	st := NewSQLStore(conn)

	ok, err := st.HasSignature(ctx, "s1")
	if err != nil || ok {
		t.Fatalf("expected no signature, got %v (%v)", ok, err)
	}
	for i := 0; i < 2; i++ {
		if err := st.RecordSignature(ctx, "s1", time.Now()); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	ok, err = st.HasSignature(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("expected signature, got %v (%v)", ok, err)
	}
}

func TestSignatures_InMemory(t *testing.T) {
	ctx := context.Background()
	s := NewSignatures("s1")
	if ok, _ := s.HasSignature(ctx, "s1"); !ok {
		t.Fatalf("s1 should be signed")
	}
	if ok, _ := s.HasSignature(ctx, "s2"); ok {
		t.Fatalf("s2 should not be signed")
	}
	_ = s.RecordSignature(ctx, "s2", time.Now())
	if ok, _ := s.HasSignature(ctx, "s2"); !ok {
		t.Fatalf("s2 should be signed after recording")
	}
}
