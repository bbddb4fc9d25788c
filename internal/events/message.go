package events

import (
	"encoding/json"
	"time"
)

// Activity message types accepted on the activity queue.
const (
	TypeQuizSubmitted  = "quiz_submitted"
	TypeScormReported  = "scorm_reported"
	TypeManualOverride = "manual_override"
	TypeRecheck        = "recheck"
)

// Routing keys published on the completion exchange.
const (
	KeyEnrollmentUpdated   = "enrollment.updated"
	KeyEnrollmentCompleted = "enrollment.completed"
)

// Message is the envelope of one activity event.
type Message struct {
	Type      string          `json:"type"`
	StudentID string          `json:"student_id"`
	CourseID  string          `json:"course_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type quizPayload struct {
	SubmittedAt time.Time           `json:"submitted_at"`
	Answers     map[string][]string `json:"answers"`
}

type overridePayload struct {
	Score  *int   `json:"score"`
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// enrollmentEvent is what downstream consumers (certificates, gradebook) receive.
type enrollmentEvent struct {
	Type    string            `json:"type"`
	Payload enrollmentPayload `json:"payload"`
	SentAt  time.Time         `json:"sent_at"`
}

type enrollmentPayload struct {
	EnrollmentID   string     `json:"enrollment_id"`
	StudentID      string     `json:"student_id"`
	CourseID       string     `json:"course_id"`
	Event          string     `json:"event"`
	PreviousStatus string     `json:"previous_status"`
	Status         string     `json:"status"`
	BestScore      *int       `json:"best_score"`
	CurrentAttempt int        `json:"current_attempt"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Version        int64      `json:"version"`
}
