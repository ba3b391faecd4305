// Command dlqpeek prints the messages currently sitting in the dead-letter
// queue without consuming them — each message is read then requeued.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/webhookhub/webhookhub/internal/broker"
	"github.com/webhookhub/webhookhub/internal/config"
	"github.com/webhookhub/webhookhub/internal/domain"
)

func main() {
	limit := flag.Int("limit", 20, "maximum number of messages to peek")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := broker.Declare(ch); err != nil {
		logger.Error("failed to declare topology", "error", err)
		os.Exit(1)
	}

	count := 0
	var lastTag uint64
	for count < *limit {
		msg, ok, err := ch.Get(broker.DeadQueue, false)
		if err != nil {
			logger.Error("failed to get message", "error", err)
			os.Exit(1)
		}
		if !ok {
			break
		}

		var job domain.DeliveryJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			fmt.Printf("unreadable message: %s\n", string(msg.Body))
		} else {
			fmt.Printf("delivery=%s event=%s destination=%s target=%s attempt=%d\n",
				job.DeliveryID, job.EventID, job.DestinationID, job.TargetURL, job.Attempt)
		}

		lastTag = msg.DeliveryTag
		count++
	}

	// Requeue everything only after the loop: a message requeued right away
	// returns to the head of the queue and the next Get would read it again.
	if count > 0 {
		if err := ch.Nack(lastTag, true, true); err != nil {
			logger.Error("failed to requeue messages after peek", "error", err)
		}
	}

	fmt.Printf("peeked %d message(s)\n", count)
}
