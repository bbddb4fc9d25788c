package completion

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CourseConfig is owned by the course catalog and read-only here.
type CourseConfig struct {
	PassingScore      int  `json:"passing_score"`
	QuizWeight        int  `json:"quiz_weight"`
	ScormWeight       int  `json:"scorm_weight"`
	MaxAttempts       int  `json:"max_attempts"`
	RequiresSignature bool `json:"requires_signature"`
}

func (c CourseConfig) Validate() error {
	if c.PassingScore < 0 || c.PassingScore > 100 {
		return fmt.Errorf("%w: passing score %d outside 0-100", ErrInvalidConfiguration, c.PassingScore)
	}
	if c.QuizWeight < 0 || c.QuizWeight > 100 || c.ScormWeight < 0 || c.ScormWeight > 100 {
		return fmt.Errorf("%w: weights must be within 0-100 (quiz=%d scorm=%d)", ErrInvalidConfiguration, c.QuizWeight, c.ScormWeight)
	}
	if c.QuizWeight+c.ScormWeight != 100 {
		return fmt.Errorf("%w: weights sum to %d, want 100", ErrInvalidConfiguration, c.QuizWeight+c.ScormWeight)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidConfiguration, c.MaxAttempts)
	}
	return nil
}

// Enrollment is the authoritative lifecycle record for one student in one course.
// Only Reconcile proposes new values; the enrollment store persists them.
type Enrollment struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	CourseID       string     `json:"course_id"`
	Status         Status     `json:"status"`
	BestScore      *int       `json:"best_score"`
	CurrentAttempt int        `json:"current_attempt"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	QuizScore      *int     `json:"quiz_score"`  // best quiz percentage so far
	ScormScore     *int     `json:"scorm_score"` // best normalized SCORM percentage so far
	SubmissionKeys []string `json:"-"`           // applied quiz submission identities

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEnrollment returns the state an enrollment has at course assignment.
func NewEnrollment(id, studentID, courseID string, now time.Time) Enrollment {
	return Enrollment{
		ID:        id,
		StudentID: studentID,
		CourseID:  courseID,
		Status:    StatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (e Enrollment) HasSubmission(key string) bool {
	for _, k := range e.SubmissionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Clone copies the pointer and slice fields so the caller's value is never aliased.
func (e Enrollment) Clone() Enrollment {
	out := e
	out.BestScore = copyInt(e.BestScore)
	out.QuizScore = copyInt(e.QuizScore)
	out.ScormScore = copyInt(e.ScormScore)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	if e.SubmissionKeys != nil {
		out.SubmissionKeys = append([]string(nil), e.SubmissionKeys...)
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a small helper for optional scores.
func IntPtr(v int) *int { return &v }
