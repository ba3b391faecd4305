package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/webhookhub/webhookhub/internal/domain"
)

// Publisher is the capability the ingest pipeline and the delivery consumer
// need from the broker. A small in-memory fake satisfies it in tests.
type Publisher interface {
	PublishDelivery(ctx context.Context, job domain.DeliveryJob) error
	PublishRetry(ctx context.Context, job domain.DeliveryJob, delayMs int64) error
	PublishDead(ctx context.Context, job domain.DeliveryJob) error
}

// ChannelPublisher publishes onto a live amqp091-go channel.
type ChannelPublisher struct {
	ch *amqp.Channel
}

func NewChannelPublisher(ch *amqp.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

// PublishDelivery places a fresh delivery job on the main exchange, routed
// to the main queue.
func (p *ChannelPublisher) PublishDelivery(ctx context.Context, job domain.DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling delivery job: %w", err)
	}
	return p.ch.PublishWithContext(ctx, MainExchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// PublishRetry places job on the retry queue via the default exchange,
// with a per-message expiration so it dead-letters back to the main
// exchange after delayMs. The routing key on a default-exchange publish is
// the destination queue name.
func (p *ChannelPublisher) PublishRetry(ctx context.Context, job domain.DeliveryJob, delayMs int64) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling retry job: %w", err)
	}
	return p.ch.PublishWithContext(ctx, "", RetryQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Expiration:   strconv.FormatInt(delayMs, 10),
		Body:         body,
	})
}

// PublishDead places job directly on the dead-letter exchange.
func (p *ChannelPublisher) PublishDead(ctx context.Context, job domain.DeliveryJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling dead-letter job: %w", err)
	}
	return p.ch.PublishWithContext(ctx, DLXExchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
