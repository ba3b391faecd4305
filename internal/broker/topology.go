// Package broker declares and drives the RabbitMQ topology deliveries flow
// through: the main exchange and queue, the retry queue that re-delivers via
// per-message TTL, and the dead-letter exchange/queue for exhausted
// deliveries.
package broker

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	MainExchange  = "webhookhub"
	DLXExchange   = "deliveries.dlx"
	MainQueue     = "webhookhub.deliveries"
	RetryQueue    = "deliveries.retry.q"
	DeadQueue     = "deliveries.dlq"
	RoutingKey    = "delivery"
	mainQueueTTLMs = 1800000
)

// Declare idempotently declares every exchange and queue the topology needs
// and binds them. Safe to call on every process start.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(MainExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(DLXExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(MainQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":          int32(mainQueueTTLMs),
		"x-dead-letter-exchange": DLXExchange,
	}); err != nil {
		return err
	}
	if err := ch.QueueBind(MainQueue, RoutingKey, MainExchange, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(RetryQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    MainExchange,
		"x-dead-letter-routing-key": RoutingKey,
	}); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(DeadQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DeadQueue, "", DLXExchange, false, nil); err != nil {
		return err
	}

	return nil
}
