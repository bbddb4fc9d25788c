package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/streadway/amqp"

	"github.com/mind-engage/mindengage-completion/internal/enrollment"
)

type amqpPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher announces persisted enrollment changes on a topic exchange.
type Publisher struct {
	ch       amqpPublisher
	exchange string
	now      func() time.Time
}

func NewPublisher(ch amqpPublisher, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}
}

// Dial connects and declares the durable topic exchange both sides use.
func Dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (p *Publisher) Name() string { return "amqp" }

func (p *Publisher) Notify(_ context.Context, c enrollment.Change) error {
	key := KeyEnrollmentUpdated
	if c.Completed() {
		key = KeyEnrollmentCompleted
	}
	e := c.Enrollment
	body, err := json.Marshal(enrollmentEvent{
		Type: key,
		Payload: enrollmentPayload{
			EnrollmentID:   e.ID,
			StudentID:      e.StudentID,
			CourseID:       e.CourseID,
			Event:          string(c.Event),
			PreviousStatus: string(c.PreviousStatus),
			Status:         string(e.Status),
			BestScore:      e.BestScore,
			CurrentAttempt: e.CurrentAttempt,
			CompletedAt:    e.CompletedAt,
			Version:        e.Version,
		},
		SentAt: p.now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.ch.Publish(p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID + ":" + strconv.FormatInt(e.Version, 10),
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
}
