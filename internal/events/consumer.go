package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/course"
	"github.com/mind-engage/mindengage-completion/internal/enrollment"
	"github.com/mind-engage/mindengage-completion/internal/grading"
)

// ErrPoison marks a message that can never succeed; it is dropped instead of requeued.
var ErrPoison = errors.New("unprocessable activity message")

// Applier is the slice of enrollment.Service the consumer drives.
type Applier interface {
	SubmitQuiz(ctx context.Context, sub grading.Submission) (enrollment.QuizResult, error)
	ReportScorm(ctx context.Context, studentID, courseID string, raw []byte) (enrollment.ScormResult, error)
	Override(ctx context.Context, studentID, courseID string, score int, actor, reason string) (completion.Outcome, error)
	Recheck(ctx context.Context, studentID, courseID string) (completion.Outcome, error)
}

type Handler struct {
	svc Applier
	log *zap.Logger
}

func NewHandler(svc Applier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

// Handle decodes one message and applies it.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrPoison, err)
	}
	if m.StudentID == "" || m.CourseID == "" {
		return fmt.Errorf("%w: student_id and course_id required", ErrPoison)
	}

	var err error
	switch m.Type {
	case TypeQuizSubmitted:
		var p quizPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return fmt.Errorf("%w: quiz payload: %v", ErrPoison, err)
		}
		if p.SubmittedAt.IsZero() {
			// without a timestamp a redelivery could not be recognized
			return fmt.Errorf("%w: quiz submission without submitted_at", ErrPoison)
		}
		_, err = h.svc.SubmitQuiz(ctx, grading.Submission{
			StudentID: m.StudentID, CourseID: m.CourseID, Answers: p.Answers, SubmittedAt: p.SubmittedAt,
		})
	case TypeScormReported:
		_, err = h.svc.ReportScorm(ctx, m.StudentID, m.CourseID, m.Payload)
	case TypeManualOverride:
		var p overridePayload
		if err := json.Unmarshal(m.Payload, &p); err != nil || p.Score == nil {
			return fmt.Errorf("%w: override needs a score", ErrPoison)
		}
		if *p.Score < 0 || *p.Score > 100 {
			return fmt.Errorf("%w: override score %d outside 0-100", ErrPoison, *p.Score)
		}
		_, err = h.svc.Override(ctx, m.StudentID, m.CourseID, *p.Score, p.Actor, p.Reason)
	case TypeRecheck:
		_, err = h.svc.Recheck(ctx, m.StudentID, m.CourseID)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrPoison, m.Type)
	}
	if err != nil && permanent(err) {
		return fmt.Errorf("%w: %v", ErrPoison, err)
	}
	return err
}

func permanent(err error) bool {
	return errors.Is(err, enrollment.ErrNotFound) ||
		errors.Is(err, enrollment.ErrNoSubmissionTime) ||
		errors.Is(err, course.ErrNotFound) ||
		errors.Is(err, completion.ErrInvalidConfiguration)
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer reads activity messages from a queue bound to the completion exchange.
type Consumer struct {
	ch       *amqp.Channel
	exchange string
	queue    string
	prefetch int
	handler  *Handler
	log      *zap.Logger
}

func NewConsumer(ch *amqp.Channel, exchange, queue string, prefetch int, h *Handler, log *zap.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 16
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{ch: ch, exchange: exchange, queue: queue, prefetch: prefetch, handler: h, log: log}
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(c.queue, "activity.#", c.exchange, false, nil); err != nil {
		return err
	}
	deliveries, err := c.ch.Consume(c.queue, "completiond", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info("consuming activity events", zap.String("queue", c.queue), zap.String("exchange", c.exchange))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("activity channel closed")
			}
			c.dispatch(ctx, d, d.Body)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, ack acknowledger, body []byte) {
	err := c.handler.Handle(ctx, body)
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case errors.Is(err, ErrPoison):
		c.log.Warn("dropping activity message", zap.Error(err), zap.ByteString("body", truncate(body, 512)))
		_ = ack.Nack(false, false)
	default:
		c.log.Error("activity message failed, requeueing", zap.Error(err))
		_ = ack.Nack(false, true)
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
