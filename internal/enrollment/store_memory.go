package enrollment

import (
	"context"
	"fmt"
	"sync"

	"github.com/mind-engage/mindengage-completion/internal/completion"
)

// MemoryStore keeps enrollments in a map. Used by tests and single-node demos.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]completion.Enrollment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]completion.Enrollment{}}
}

func (m *MemoryStore) Get(_ context.Context, studentID, courseID string) (completion.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.rows[Key(studentID, courseID)]
	if !ok {
		return completion.Enrollment{}, fmt.Errorf("%w: %s", ErrNotFound, Key(studentID, courseID))
	}
	return e.Clone(), nil
}

func (m *MemoryStore) Create(_ context.Context, e completion.Enrollment) (completion.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(e.StudentID, e.CourseID)
	if cur, ok := m.rows[k]; ok {
		return cur.Clone(), nil
	}
	e.Version = 1
	m.rows[k] = e.Clone()
	return e, nil
}

func (m *MemoryStore) Update(_ context.Context, e completion.Enrollment, expectedVersion int64) (completion.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(e.StudentID, e.CourseID)
	cur, ok := m.rows[k]
	if !ok {
		return completion.Enrollment{}, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if cur.Version != expectedVersion {
		return completion.Enrollment{}, fmt.Errorf("%w: %s at version %d, expected %d", ErrStaleWrite, k, cur.Version, expectedVersion)
	}
	e.Version = expectedVersion + 1
	m.rows[k] = e.Clone()
	return e, nil
}
