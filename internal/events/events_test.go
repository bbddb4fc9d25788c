package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/streadway/amqp"

	"github.com/mind-engage/mindengage-completion/internal/completion"
	"github.com/mind-engage/mindengage-completion/internal/enrollment"
	"github.com/mind-engage/mindengage-completion/internal/grading"
)

type fakeApplier struct {
	calls []string
	subs  []grading.Submission
	err   error
}

func (f *fakeApplier) SubmitQuiz(_ context.Context, sub grading.Submission) (enrollment.QuizResult, error) {
	f.calls = append(f.calls, "quiz")
	f.subs = append(f.subs, sub)
	return enrollment.QuizResult{}, f.err
}

func (f *fakeApplier) ReportScorm(_ context.Context, _, _ string, raw []byte) (enrollment.ScormResult, error) {
	f.calls = append(f.calls, "scorm:"+string(raw))
	return enrollment.ScormResult{}, f.err
}

func (f *fakeApplier) Override(_ context.Context, _, _ string, score int, actor, _ string) (completion.Outcome, error) {
	f.calls = append(f.calls, fmt.Sprintf("override:%d:%s", score, actor))
	return completion.Outcome{}, f.err
}

func (f *fakeApplier) Recheck(context.Context, string, string) (completion.Outcome, error) {
	f.calls = append(f.calls, "recheck")
	return completion.Outcome{}, f.err
}

type fakeAck struct{ acked, nacked, requeued int }

func (a *fakeAck) Ack(bool) error {
	a.acked++
	return nil
}

func (a *fakeAck) Nack(_ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func TestHandler_Dispatch(t *testing.T) {
	f := &fakeApplier{}
	h := NewHandler(f, nil)
	msgs := []string{
		`{"type":"quiz_submitted","student_id":"s1","course_id":"c1","payload":{"submitted_at":"2026-05-01T10:00:00Z","answers":{"q1":["a"]}}}`,
		`{"type":"scorm_reported","student_id":"s1","course_id":"c1","payload":{"completed":true}}`,
		`{"type":"manual_override","student_id":"s1","course_id":"c1","payload":{"score":88,"actor":"admin"}}`,
		`{"type":"recheck","student_id":"s1","course_id":"c1"}`,
	}
	for _, m := range msgs {
		if err := h.Handle(context.Background(), []byte(m)); err != nil {
			t.Fatalf("handle %s: %v", m, err)
		}
	}
	want := []string{"quiz", `scorm:{"completed":true}`, "override:88:admin", "recheck"}
	if fmt.Sprint(f.calls) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, f.calls)
	}
	if got := f.subs[0].SubmittedAt; !got.Equal(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("submitted_at not carried: %v", got)
	}
}

func TestHandler_Poison(t *testing.T) {
	h := NewHandler(&fakeApplier{}, nil)
	for _, m := range []string{
		`not json`,
		`{"type":"recheck","course_id":"c1"}`,
		`{"type":"teleport","student_id":"s1","course_id":"c1"}`,
		`{"type":"manual_override","student_id":"s1","course_id":"c1","payload":{"actor":"admin"}}`,
		`{"type":"manual_override","student_id":"s1","course_id":"c1","payload":{"score":140}}`,
		`{"type":"quiz_submitted","student_id":"s1","course_id":"c1","payload":{"answers":{}}}`,
	} {
		if err := h.Handle(context.Background(), []byte(m)); !errors.Is(err, ErrPoison) {
			t.Errorf("%s: expected ErrPoison, got %v", m, err)
		}
	}

	notEnrolled := NewHandler(&fakeApplier{err: fmt.Errorf("apply: %w", enrollment.ErrNotFound)}, nil)
	if err := notEnrolled.Handle(context.Background(), []byte(`{"type":"recheck","student_id":"s1","course_id":"c1"}`)); !errors.Is(err, ErrPoison) {
		t.Fatalf("not-found should be poison, got %v", err)
	}
}

func TestConsumer_AckNack(t *testing.T) {
	body := []byte(`{"type":"recheck","student_id":"s1","course_id":"c1"}`)
	cases := []struct {
		name                  string
		applyErr              error
		body                  []byte
		acked, nacked, requeu int
	}{
		{"success", nil, body, 1, 0, 0},
		{"transient", errors.New("db timeout"), body, 0, 1, 1},
		{"poison", nil, []byte(`{}`), 0, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConsumer(nil, "completion", "completion.activity", 0, NewHandler(&fakeApplier{err: tc.applyErr}, nil), nil)
			a := &fakeAck{}
			c.dispatch(context.Background(), a, tc.body)
			if a.acked != tc.acked || a.nacked != tc.nacked || a.requeued != tc.requeu {
				t.Fatalf("got ack=%d nack=%d requeue=%d", a.acked, a.nacked, a.requeued)
			}
		})
	}
}

type capturePublisher struct {
	exchange, key string
	msg           amqp.Publishing
}

func (c *capturePublisher) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func TestPublisher_RoutingKeys(t *testing.T) {
	cp := &capturePublisher{}
	p := NewPublisher(cp, "completion")

	e := completion.NewEnrollment("e1", "s1", "c1", time.Now())
	e.Status = completion.StatusCompleted
	e.BestScore = completion.IntPtr(76)
	e.Version = 3

	if err := p.Notify(context.Background(), enrollment.Change{Event: completion.KindScormReported, Enrollment: e, PreviousStatus: completion.StatusInProgress}); err != nil {
		t.Fatal(err)
	}
	if cp.exchange != "completion" || cp.key != KeyEnrollmentCompleted || cp.msg.MessageId != "e1:3" {
		t.Fatalf("unexpected publish: %s %s %s", cp.exchange, cp.key, cp.msg.MessageId)
	}
	var got enrollmentEvent
	if err := json.Unmarshal(cp.msg.Body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Payload.Status != "completed" || *got.Payload.BestScore != 76 || got.Payload.Event != "scorm_reported" {
		t.Fatalf("unexpected payload: %+v", got.Payload)
	}

	e.Status = completion.StatusInProgress
	_ = p.Notify(context.Background(), enrollment.Change{Event: completion.KindQuizSubmitted, Enrollment: e, PreviousStatus: completion.StatusNotStarted})
	if cp.key != KeyEnrollmentUpdated {
		t.Fatalf("expected %s, got %s", KeyEnrollmentUpdated, cp.key)
	}
}
