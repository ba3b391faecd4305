package main

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/webhookhub/webhookhub/internal/broker"
)

// dialPublisher opens a dedicated connection and channel for publishing
// retry and dead-letter messages, and declares the topology on it so the
// worker can run standalone even if nothing else has declared it yet.
func dialPublisher(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := broker.Declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declaring topology: %w", err)
	}

	return conn, ch, nil
}
