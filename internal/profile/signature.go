package profile

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// SignatureChecker reports whether a student has a digital signature on file.
type SignatureChecker interface {
	HasSignature(ctx context.Context, studentID string) (bool, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) HasSignature(ctx context.Context, studentID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM signatures WHERE student_id=$1`, studentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// RecordSignature marks the student's signature as captured. Re-signing keeps the first timestamp.
func (s *SQLStore) RecordSignature(ctx context.Context, studentID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO signatures (student_id, signed_at) VALUES ($1,$2)
		ON CONFLICT (student_id) DO NOTHING`, studentID, at.Unix())
	return err
}

// Signatures is an in-memory SignatureChecker.
type Signatures struct {
	mu     sync.RWMutex
	signed map[string]bool
}

func NewSignatures(students ...string) *Signatures {
	s := &Signatures{signed: map[string]bool{}}
	for _, id := range students {
		s.signed[id] = true
	}
	return s
}

func (s *Signatures) HasSignature(_ context.Context, studentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signed[studentID], nil
}

func (s *Signatures) RecordSignature(_ context.Context, studentID string, _ time.Time) error {
	s.mu.Lock()
	s.signed[studentID] = true
	s.mu.Unlock()
	return nil
}
