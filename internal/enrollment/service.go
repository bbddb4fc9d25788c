package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-completion/internal/certificate"
	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/grading"
	"github.com/mind-engage/mindengage-completion/internal/metrics"
	"github.com/mind-engage/mindengage-completion/internal/profile"
	"github.com/mind-engage/mindengage-completion/internal/scorm"
)

// CourseProvider is the read side of the course catalog.
type CourseProvider interface {
	CourseConfig(ctx context.Context, courseID string) (completion.CourseConfig, error)
	QuestionBank(ctx context.Context, courseID string) (grading.QuestionBank, error)
}

// AuditLog receives one entry per persisted reconciliation.
type AuditLog interface {
	Record(ctx context.Context, typ, key string, data any) error
}

// Change describes a persisted enrollment update.
type Change struct {
	Event          completion.EventKind
	Enrollment     completion.Enrollment
	PreviousStatus completion.Status
}

// Completed reports whether this change moved the enrollment into completed.
func (c Change) Completed() bool {
	return c.PreviousStatus != completion.StatusCompleted && c.Enrollment.Status == completion.StatusCompleted
}

// Notifier is told about every persisted change after the enrollment lock is released.
// Failures are logged; they never undo the write.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, c Change) error
}

type QuizResult struct {
	Score   grading.Result     `json:"score"`
	Outcome completion.Outcome `json:"-"`
}

type ScormResult struct {
	Normalized scorm.Result       `json:"normalized"`
	Outcome    completion.Outcome `json:"-"`
}

type Service struct {
	store     Store
	courses   CourseProvider
	sigs      profile.SignatureChecker
	locker    Locker
	audit     AuditLog
	notifiers []Notifier

	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string

	attempts int
	backoff  time.Duration
}

type Option func(*Service)

func WithLocker(l Locker) Option            { return func(s *Service) { s.locker = l } }
func WithAuditLog(a AuditLog) Option        { return func(s *Service) { s.audit = a } }
func WithLogger(l *zap.Logger) Option       { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDs(newID func() string) Option    { return func(s *Service) { s.newID = newID } }

func WithNotifiers(n ...Notifier) Option {
	return func(s *Service) { s.notifiers = append(s.notifiers, n...) }
}

// WithRetry bounds how often a stale or failed write is retried; backoff grows linearly.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.attempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

func NewService(store Store, courses CourseProvider, sigs profile.SignatureChecker, opts ...Option) *Service {
	s := &Service{
		store:    store,
		courses:  courses,
		sigs:     sigs,
		locker:   NewKeyedMutex(),
		log:      zap.NewNop(),
		tracer:   otel.Tracer("github.com/mind-engage/mindengage-completion/internal/enrollment"),
		now:      time.Now,
		newID:    uuid.NewString,
		attempts: 5,
		backoff:  20 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enroll assigns a student to a course. Enrolling twice returns the existing record.
func (s *Service) Enroll(ctx context.Context, studentID, courseID string) (completion.Enrollment, error) {
	if studentID == "" || courseID == "" {
		return completion.Enrollment{}, errors.New("student and course required")
	}
	if _, err := s.courses.CourseConfig(ctx, courseID); err != nil {
		return completion.Enrollment{}, err
	}
	e, err := s.store.Create(ctx, completion.NewEnrollment(s.newID(), studentID, courseID, s.now().UTC()))
	if err != nil {
		return completion.Enrollment{}, err
	}
	s.log.Debug("enrolled", zap.String("student", studentID), zap.String("course", courseID), zap.String("status", string(e.Status)))
	return e, nil
}

func (s *Service) Get(ctx context.Context, studentID, courseID string) (completion.Enrollment, error) {
	return s.store.Get(ctx, studentID, courseID)
}

// SubmitQuiz scores a submission against the course bank and reconciles the result.
// SubmittedAt is part of the submission identity and must be set by the client.
func (s *Service) SubmitQuiz(ctx context.Context, sub grading.Submission) (QuizResult, error) {
	if sub.SubmittedAt.IsZero() {
		return QuizResult{}, ErrNoSubmissionTime
	}
	bank, err := s.courses.QuestionBank(ctx, sub.CourseID)
	if err != nil {
		return QuizResult{}, err
	}
	res, err := grading.Score(bank, sub)
	if err != nil {
		return QuizResult{}, err
	}
	out, err := s.Apply(ctx, sub.StudentID, sub.CourseID, completion.QuizSubmitted{
		Key:         sub.Key(),
		Percent:     res.Percent,
		SubmittedAt: sub.SubmittedAt,
	})
	if err != nil {
		return QuizResult{}, err
	}
	return QuizResult{Score: res, Outcome: out}, nil
}

// ReportScorm normalizes a runtime payload and reconciles it. Malformed payloads
// still count as activity; they carry no score and no completion.
func (s *Service) ReportScorm(ctx context.Context, studentID, courseID string, raw []byte) (ScormResult, error) {
	norm := scorm.FromJSON(raw)
	if norm.Malformed {
		s.metrics.Malformed()
		s.log.Warn("malformed scorm runtime data",
			zap.String("student", studentID), zap.String("course", courseID), zap.Int("bytes", len(raw)))
	}
	out, err := s.Apply(ctx, studentID, courseID, completion.ScormReported{
		RawScore:  norm.RawScore,
		Completed: norm.Completed,
		Timestamp: norm.Timestamp,
	})
	if err != nil {
		return ScormResult{}, err
	}
	return ScormResult{Normalized: norm, Outcome: out}, nil
}

func (s *Service) Override(ctx context.Context, studentID, courseID string, score int, actor, reason string) (completion.Outcome, error) {
	return s.Apply(ctx, studentID, courseID, completion.ManualOverride{Score: score, Actor: actor, Reason: reason})
}

// Recheck re-runs the gate with stored scores, e.g. after a signature was captured.
func (s *Service) Recheck(ctx context.Context, studentID, courseID string) (completion.Outcome, error) {
	return s.Apply(ctx, studentID, courseID, completion.Recheck{})
}

// Eligibility answers the downstream certificate question from persisted state.
func (s *Service) Eligibility(ctx context.Context, studentID, courseID string) (certificate.Eligibility, error) {
	e, err := s.store.Get(ctx, studentID, courseID)
	if err != nil {
		return certificate.Eligibility{}, err
	}
	cfg, err := s.courses.CourseConfig(ctx, courseID)
	if err != nil {
		return certificate.Eligibility{}, err
	}
	signed, err := s.signature(ctx, cfg, studentID)
	if err != nil {
		return certificate.Eligibility{}, err
	}
	return certificate.Check(cfg, e, signed), nil
}

// Apply is the single read-modify-write path for an enrollment.
func (s *Service) Apply(ctx context.Context, studentID, courseID string, ev completion.Event) (completion.Outcome, error) {
	if ev == nil {
		return completion.Outcome{}, errors.New("apply: nil event")
	}
	kind := string(ev.Kind())
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "enrollment.Apply", trace.WithAttributes(
		attribute.String("event", kind),
		attribute.String("course", courseID),
		attribute.String("student", studentID),
	))
	defer span.End()

	out, prev, persisted, err := s.applyLocked(ctx, studentID, courseID, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveApply(kind, "error", time.Since(start))
		return completion.Outcome{}, err
	}

	result := "unchanged"
	switch {
	case out.Duplicate:
		result = "duplicate"
		s.log.Info("duplicate submission ignored", zap.String("student", studentID), zap.String("course", courseID),
			zap.Error(completion.ErrDuplicateSubmission))
	case persisted:
		result = "changed"
	}
	s.metrics.ObserveApply(kind, result, time.Since(start))
	span.SetAttributes(attribute.String("result", result), attribute.String("status", string(out.Enrollment.Status)))
	for _, w := range out.Warnings {
		s.log.Warn("reconcile warning", zap.String("student", studentID), zap.String("course", courseID), zap.Error(w))
	}

	if persisted {
		s.notify(ctx, Change{Event: ev.Kind(), Enrollment: out.Enrollment, PreviousStatus: prev})
	}
	return out, nil
}

func (s *Service) applyLocked(ctx context.Context, studentID, courseID string, ev completion.Event) (completion.Outcome, completion.Status, bool, error) {
	k := Key(studentID, courseID)
	unlock, err := s.locker.Lock(ctx, k)
	if err != nil {
		return completion.Outcome{}, "", false, fmt.Errorf("lock %s: %w", k, err)
	}
	defer unlock()

	cfg, err := s.courses.CourseConfig(ctx, courseID)
	if err != nil {
		return completion.Outcome{}, "", false, err
	}
	signed, err := s.signature(ctx, cfg, studentID)
	if err != nil {
		return completion.Outcome{}, "", false, err
	}

	for attempt := 1; ; attempt++ {
		cur, err := s.store.Get(ctx, studentID, courseID)
		if err == nil {
			var out completion.Outcome
			out, err = completion.Reconcile(cfg, cur, ev, completion.Env{SignaturePresent: signed, Now: s.now().UTC()})
			if err != nil {
				return completion.Outcome{}, "", false, err
			}
			if out.Duplicate || !out.Changed {
				return out, cur.Status, false, nil
			}
			var saved completion.Enrollment
			saved, err = s.store.Update(ctx, out.Enrollment, cur.Version)
			if err == nil {
				out.Enrollment = saved
				s.recordAudit(ctx, ev, k, cur, out)
				return out, cur.Status, true, nil
			}
		}
		if !retryable(err) || attempt >= s.attempts {
			return completion.Outcome{}, "", false, fmt.Errorf("apply %s to %s (attempt %d): %w", ev.Kind(), k, attempt, err)
		}
		if errors.Is(err, ErrStaleWrite) {
			s.metrics.StaleRetry()
		}
		s.log.Warn("retrying enrollment update", zap.String("key", k), zap.Int("attempt", attempt), zap.Error(err))
		if err := sleepCtx(ctx, time.Duration(attempt)*s.backoff); err != nil {
			return completion.Outcome{}, "", false, err
		}
	}
}

func (s *Service) signature(ctx context.Context, cfg completion.CourseConfig, studentID string) (bool, error) {
	if !cfg.RequiresSignature {
		return false, nil
	}
	ok, err := s.sigs.HasSignature(ctx, studentID)
	if err != nil {
		return false, fmt.Errorf("signature lookup %s: %w", studentID, err)
	}
	return ok, nil
}

type auditEntry struct {
	Event          completion.EventKind `json:"event"`
	PreviousStatus completion.Status    `json:"previous_status"`
	Status         completion.Status    `json:"status"`
	PreviousBest   *int                 `json:"previous_best"`
	BestScore      *int                 `json:"best_score"`
	Combined       *int                 `json:"combined"`
	Attempt        int                  `json:"attempt"`
	Blocked        bool                 `json:"blocked_on_signature,omitempty"`
	Actor          string               `json:"actor,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	Version        int64                `json:"version"`
}

func (s *Service) recordAudit(ctx context.Context, ev completion.Event, k string, prev completion.Enrollment, out completion.Outcome) {
	if s.audit == nil {
		return
	}
	entry := auditEntry{
		Event:          ev.Kind(),
		PreviousStatus: prev.Status,
		Status:         out.Enrollment.Status,
		PreviousBest:   prev.BestScore,
		BestScore:      out.Enrollment.BestScore,
		Combined:       out.Combined,
		Attempt:        out.Enrollment.CurrentAttempt,
		Blocked:        out.BlockedOnSignature,
		Version:        out.Enrollment.Version,
	}
	if o, ok := ev.(completion.ManualOverride); ok {
		entry.Actor, entry.Reason = o.Actor, o.Reason
	}
	if err := s.audit.Record(ctx, string(ev.Kind()), k, entry); err != nil {
		s.log.Error("audit append failed", zap.String("key", k), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, c Change) {
	if c.Completed() {
		s.metrics.Completed()
		s.log.Info("enrollment completed",
			zap.String("student", c.Enrollment.StudentID),
			zap.String("course", c.Enrollment.CourseID),
			zap.Intp("best_score", c.Enrollment.BestScore))
	}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, c); err != nil {
			s.metrics.NotifyFailed(n.Name())
			s.log.Error("notify failed", zap.String("notifier", n.Name()),
				zap.String("key", Key(c.Enrollment.StudentID, c.Enrollment.CourseID)), zap.Error(err))
		}
	}
}

func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound),
		errors.Is(err, completion.ErrInvalidConfiguration),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
