package completion

import "time"

// GateInput is everything the gate needs to judge one enrollment after an event.
type GateInput struct {
	Config           CourseConfig
	Event            EventKind
	Status           Status
	BestScore        *int // already updated for this event
	CurrentAttempt   int  // already incremented for this event
	CompletedAt      *time.Time
	SignaturePresent bool
	QuizSubmission   bool // the event was a new quiz submission
	Now              time.Time
}

// Decision is the proposed status tuple. Decide does not persist anything.
type Decision struct {
	Status               Status
	BestScore            *int
	CurrentAttempt       int
	CompletedAt          *time.Time
	Passed               bool // best score meets the passing score
	BlockedOnSignature   bool // passed, but a required signature is missing
	AttemptLimitExceeded bool
}

// Decide runs the completion state machine for one event.
func Decide(in GateInput) Decision {
	d := Decision{
		Status:         in.Status,
		BestScore:      copyInt(in.BestScore),
		CurrentAttempt: in.CurrentAttempt,
		CompletedAt:    in.CompletedAt,
	}
	d.AttemptLimitExceeded = in.CurrentAttempt > in.Config.MaxAttempts
	d.Passed = in.BestScore != nil && *in.BestScore >= in.Config.PassingScore

	if d.Status == StatusCompleted {
		return d
	}
	if d.Status == "" {
		d.Status = StatusNotStarted
	}
	if d.Status == StatusNotStarted && in.Event != KindRecheck {
		// a recheck is not activity
		d.Status = StatusInProgress
	}

	signatureOK := !in.Config.RequiresSignature || in.SignaturePresent
	switch {
	case d.Passed && signatureOK:
		d.Status = StatusCompleted
		if d.CompletedAt == nil {
			at := in.Now
			d.CompletedAt = &at
		}
	case d.Passed:
		d.BlockedOnSignature = true
		d.Status = StatusInProgress
	case in.QuizSubmission && in.CurrentAttempt >= in.Config.MaxAttempts:
		d.Status = StatusFailed
	}
	return d
}
