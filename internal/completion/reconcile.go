package completion

import (
	"fmt"
	"time"
)

type EventKind string

const (
	KindQuizSubmitted  EventKind = "quiz_submitted"
	KindScormReported  EventKind = "scorm_reported"
	KindManualOverride EventKind = "manual_override"
	KindRecheck        EventKind = "recheck"
)

// Event is one activity that may move an enrollment forward.
type Event interface {
	Kind() EventKind
}

// QuizSubmitted carries an already-scored quiz attempt.
type QuizSubmitted struct {
	Key         string // submission identity, see grading.Submission.Key
	Percent     int
	SubmittedAt time.Time
}

// ScormReported carries a normalized SCORM result. RawScore counts only when Completed is set.
type ScormReported struct {
	RawScore  *int
	Completed bool
	Timestamp time.Time
}

// ManualOverride is an admin score proposal. It obeys the same monotonic rule as any
// other event; lowering a score is an admin reset and lives outside this package.
type ManualOverride struct {
	Score  int
	Actor  string
	Reason string
}

// Recheck re-runs the gate with the stored scores, e.g. once a signature was captured.
type Recheck struct{}

func (QuizSubmitted) Kind() EventKind  { return KindQuizSubmitted }
func (ScormReported) Kind() EventKind  { return KindScormReported }
func (ManualOverride) Kind() EventKind { return KindManualOverride }
func (Recheck) Kind() EventKind        { return KindRecheck }

// Env carries the facts Reconcile reads from collaborators.
type Env struct {
	SignaturePresent bool
	Now              time.Time
}

type Outcome struct {
	Enrollment         Enrollment
	Combined           *int // freshly computed combined score for this event
	Changed            bool
	Duplicate          bool
	BlockedOnSignature bool
	Warnings           []error
}

// Reconcile computes the next enrollment state for one event. It is pure: the caller
// reads current under a per-enrollment lock and persists Outcome.Enrollment.
func Reconcile(cfg CourseConfig, current Enrollment, ev Event, env Env) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}
	if ev == nil {
		return Outcome{}, fmt.Errorf("reconcile: nil event")
	}
	if env.Now.IsZero() {
		env.Now = time.Now().UTC()
	}

	next := current.Clone()
	out := Outcome{}
	isQuiz := false

	switch e := ev.(type) {
	case QuizSubmitted:
		if e.Key == "" {
			return Outcome{}, fmt.Errorf("reconcile: quiz submission without identity")
		}
		if current.HasSubmission(e.Key) {
			return Outcome{Enrollment: current, Duplicate: true}, nil
		}
		if e.Percent < 0 || e.Percent > 100 {
			return Outcome{}, fmt.Errorf("reconcile: quiz percent %d outside 0-100", e.Percent)
		}
		isQuiz = true
		next.SubmissionKeys = append(next.SubmissionKeys, e.Key)
		next.CurrentAttempt++
		p := e.Percent
		out.Combined = Combine(&p, current.ScormScore, cfg)
		next.QuizScore = maxScore(current.QuizScore, &p)

	case ScormReported:
		// a failed or unfinished package has no SCORM score yet; the event still counts as activity
		score := e.RawScore
		if !e.Completed {
			score = nil
		}
		if score != nil {
			out.Combined = Combine(current.QuizScore, score, cfg)
		}
		next.ScormScore = maxScore(current.ScormScore, score)

	case ManualOverride:
		if e.Score < 0 || e.Score > 100 {
			return Outcome{}, fmt.Errorf("reconcile: override score %d outside 0-100", e.Score)
		}
		s := e.Score
		out.Combined = &s

	case Recheck:
		out.Combined = Combine(current.QuizScore, current.ScormScore, cfg)

	default:
		return Outcome{}, fmt.Errorf("reconcile: unsupported event %T", ev)
	}

	next.BestScore = maxScore(current.BestScore, out.Combined)

	d := Decide(GateInput{
		Config:           cfg,
		Event:            ev.Kind(),
		Status:           current.Status,
		BestScore:        next.BestScore,
		CurrentAttempt:   next.CurrentAttempt,
		CompletedAt:      current.CompletedAt,
		SignaturePresent: env.SignaturePresent,
		QuizSubmission:   isQuiz,
		Now:              env.Now,
	})
	next.Status = d.Status
	next.CompletedAt = d.CompletedAt
	out.BlockedOnSignature = d.BlockedOnSignature
	if d.AttemptLimitExceeded && isQuiz {
		out.Warnings = append(out.Warnings, fmt.Errorf("%w: attempt %d of %d", ErrAttemptLimitExceeded, next.CurrentAttempt, cfg.MaxAttempts))
	}

	out.Changed = !sameState(current, next)
	if out.Changed {
		next.UpdatedAt = env.Now
	}
	out.Enrollment = next
	return out, nil
}

// maxScore applies the monotonic rule: nil never replaces a value.
func maxScore(cur, fresh *int) *int {
	switch {
	case fresh == nil:
		return copyInt(cur)
	case cur == nil || *fresh > *cur:
		return copyInt(fresh)
	default:
		return copyInt(cur)
	}
}

func sameState(a, b Enrollment) bool {
	return a.Status == b.Status &&
		a.CurrentAttempt == b.CurrentAttempt &&
		eqInt(a.BestScore, b.BestScore) &&
		eqInt(a.QuizScore, b.QuizScore) &&
		eqInt(a.ScormScore, b.ScormScore) &&
		eqTime(a.CompletedAt, b.CompletedAt) &&
		len(a.SubmissionKeys) == len(b.SubmissionKeys)
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
