// Command worker consumes delivery messages from the broker, performs the
// outbound HTTP delivery, and durably records the resulting state
// transition before acking.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/webhookhub/webhookhub/internal/broker"
	"github.com/webhookhub/webhookhub/internal/config"
	"github.com/webhookhub/webhookhub/internal/delivery"
	"github.com/webhookhub/webhookhub/internal/engine"
	"github.com/webhookhub/webhookhub/internal/store"
	"github.com/webhookhub/webhookhub/internal/wsfeed"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to postgres")

	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to redis")

	cb := engine.NewCircuitBreaker(redisStore.Client(), logger)
	rl := engine.NewRateLimiter(redisStore.Client(), logger)

	hub := wsfeed.NewHub(logger)
	go hub.Run()

	client := delivery.NewClient(cfg.HTTPTimeout)

	// Publishing (retries, dead-letters) uses its own connection, separate
	// from the consumer's — a retry publish must still work while the
	// consume connection is mid-reconnect.
	pubConn, pubCh, err := dialPublisher(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("failed to open publisher connection", "error", err)
		os.Exit(1)
	}
	defer pubConn.Close()
	defer pubCh.Close()

	publisher := broker.NewChannelPublisher(pubCh)
	handler := delivery.NewMessageHandler(pgStore, publisher, client, cb, rl, hub, cfg.BaseDelay, cfg.MaxDelay, logger)

	consumer := broker.NewConsumer(broker.Config{URL: cfg.RabbitMQURL, Prefetch: cfg.Prefetch}, handler, logger)

	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down worker...")
		cancel()
		<-done
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			logger.Error("consumer stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("worker stopped")
}
