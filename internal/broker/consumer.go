package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome tells the Consumer how to settle a delivery after Handler.Handle
// returns. The durable state transition must already be written before
// Handle returns it — there is no "ack then write" ordering in this design.
type Outcome int

const (
	// Ack acknowledges the message — used for every outcome the handler
	// durably recorded (success, scheduled retry, or moved to dead-letter).
	Ack Outcome = iota
	// Reject nacks the message without requeue. The main queue's own
	// dead-letter binding routes it to the DLX from there. Used for
	// undecodable messages, handler errors (a failed load, status write or
	// publish) and handler panics. A status write may already have been
	// recorded when the publish that follows it fails.
	Reject
)

// Handler processes one delivery message end to end.
type Handler interface {
	Handle(ctx context.Context, body []byte) Outcome
}

// Config configures the amqp091-go connection and the consumer loop.
type Config struct {
	URL      string
	Prefetch int
}

// Consumer connects to RabbitMQ, declares the topology, and dispatches
// messages from the main queue to Handler with a prefetch-bounded number of
// messages in flight at once.
type Consumer struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
}

func NewConsumer(cfg Config, handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{cfg: cfg, handler: handler, logger: logger}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff (capped at 30s) on connection loss.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Error("consumer connection lost, reconnecting", "error", err, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Consumer) runOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dialing rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}
	defer ch.Close()

	if err := Declare(ch); err != nil {
		return fmt.Errorf("declaring topology: %w", err)
	}

	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}

	deliveries, err := ch.Consume(MainQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("starting consume: %w", err)
	}

	closed := make(chan *amqp.Error, 1)
	conn.NotifyClose(closed)

	sem := make(chan struct{}, prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case connErr := <-closed:
			if connErr != nil {
				return connErr
			}
			return fmt.Errorf("connection closed")
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				c.settle(ctx, d)
			}(d)
		}
	}
}

func (c *Consumer) settle(ctx context.Context, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("delivery handler panicked", "panic", r)
			if err := d.Nack(false, false); err != nil {
				c.logger.Error("failed to nack delivery", "error", err)
			}
		}
	}()

	outcome := c.handler.Handle(ctx, d.Body)
	switch outcome {
	case Ack:
		if err := d.Ack(false); err != nil {
			c.logger.Error("failed to ack delivery", "error", err)
		}
	default:
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("failed to nack delivery", "error", err)
		}
	}
}
