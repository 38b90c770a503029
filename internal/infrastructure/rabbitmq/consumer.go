package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/clinicore/authorization/pkg/apperrors"
)

const (
	consumerPrefetch = 16
	reconnectBackoff = 2 * time.Second
	handlerTimeout   = 30 * time.Second
)

// Handler applies one decoded fact. Returning nil acknowledges the delivery;
// that ack is the commit point, so the handler must have persisted its
// mutation first.
type Handler func(ctx context.Context, env Envelope) error

// Binding ties a queue to the handler for its fact kind.
type Binding struct {
	Queue   string
	Handler Handler
}

// Consumer runs one supervised, auto-reconnecting loop per bound queue.
// Handlers across queues run concurrently; serialization of same-account
// mutations is the sync service's job.
type Consumer struct {
	url      string
	logger   *logrus.Logger
	bindings []Binding
}

func NewConsumer(url string, logger *logrus.Logger, bindings []Binding) *Consumer {
	return &Consumer{url: url, logger: logger, bindings: bindings}
}

// Run blocks until ctx is cancelled, then waits for in-flight handlers to
// finish before returning.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, b := range c.bindings {
		wg.Add(1)
		go func(b Binding) {
			defer wg.Done()
			c.consumeLoop(ctx, b)
		}(b)
	}
	wg.Wait()
}

func (c *Consumer) consumeLoop(ctx context.Context, b Binding) {
	log := c.logger.WithField("queue", b.Queue)
	for {
		if err := c.consumeOnce(ctx, b); err != nil {
			log.WithError(err).Warn("consumer disconnected")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, b Binding) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	msgs, err := ch.Consume(b.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.WithField("queue", b.Queue).Info("consumer listening")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.dispatch(ctx, b, msg)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, b Binding, msg amqp.Delivery) {
	log := c.logger.WithField("queue", b.Queue)

	env, err := decodeEnvelope(msg.Body)
	if err != nil {
		log.WithError(err).Error("bad message dropped")
		_ = msg.Nack(false, false)
		return
	}

	// The handler context is detached from the consume loop's: shutdown stops
	// pulling new deliveries but lets the in-flight invocation finish.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handlerTimeout)
	err = b.Handler(hctx, env)
	cancel()
	if err != nil {
		if permanent(err) {
			log.WithError(err).WithField("message_id", env.MessageID).Error("fact rejected")
			_ = msg.Nack(false, false)
			return
		}
		log.WithError(err).WithField("message_id", env.MessageID).Warn("fact requeued")
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func decodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, err
	}
	if env.Kind == "" {
		return Envelope{}, errors.New("envelope missing kind")
	}
	return env, nil
}

// permanent reports whether redelivery cannot possibly succeed, e.g. a fact
// referencing an account that does not exist here.
func permanent(err error) bool {
	var nf *apperrors.NotFoundError
	return errors.As(err, &nf)
}
