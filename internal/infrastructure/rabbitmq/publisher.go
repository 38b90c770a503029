package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/clinicore/authorization/pkg/apperrors"
)

const (
	publishTimeout  = 5 * time.Second
	publishAttempts = 3
)

// Publisher owns the outbound broker connection. Each publish acquires its own
// short-lived channel; the connection is redialed lazily when the broker drops
// it. A publish failure never propagates past the business operation that
// triggered it — callers log the MessagingError and move on.
type Publisher struct {
	url    string
	logger *logrus.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewPublisher(url string, logger *logrus.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

func (p *Publisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish seals the payload into an envelope and delivers it to the named
// durable queue, retrying within a small budget. On exhaustion the fact is
// dropped with a logged error; at-least-once then rests on broker durability.
func (p *Publisher) Publish(ctx context.Context, queue string, kind FactKind, payload any) error {
	env, err := NewEnvelope(kind, payload)
	if err != nil {
		return apperrors.NewMessagingError("encode "+queue, err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return apperrors.NewMessagingError("encode "+queue, err)
	}

	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		lastErr = p.publishOnce(ctx, queue, body)
		if lastErr == nil {
			return nil
		}
		p.logger.WithError(lastErr).WithFields(logrus.Fields{
			"queue":   queue,
			"attempt": attempt,
		}).Warn("publish failed")
		select {
		case <-ctx.Done():
			return apperrors.NewMessagingError("publish "+queue, ctx.Err())
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return apperrors.NewMessagingError("publish "+queue, lastErr)
}

func (p *Publisher) publishOnce(ctx context.Context, queue string, body []byte) error {
	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(pubCtx,
		"",    // default exchange
		queue, // routing key = queue
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
