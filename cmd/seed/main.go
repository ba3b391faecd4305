// Command seed loads development fixtures: a source, a destination, and
// the rule connecting them. It is not part of the running system — sources
// and destinations are provisioned out of band.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/webhookhub/webhookhub/internal/config"
	"github.com/webhookhub/webhookhub/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	sourceID := uuid.NewString()
	sourceName := envOr("SEED_SOURCE_NAME", "github")
	sourceSecret := envOr("SEED_SOURCE_SECRET", "dev-secret")
	if err := pgStore.CreateSource(ctx, sourceID, sourceName, sourceSecret); err != nil {
		logger.Error("failed to create source", "error", err)
		os.Exit(1)
	}
	logger.Info("seeded source", "name", sourceName, "secret", sourceSecret)

	destID := uuid.NewString()
	destName := envOr("SEED_DESTINATION_NAME", "local-sink")
	destURL := envOr("SEED_DESTINATION_URL", "http://localhost:9000/webhooks")
	if err := pgStore.CreateDestination(ctx, destID, destName, destURL); err != nil {
		logger.Error("failed to create destination", "error", err)
		os.Exit(1)
	}
	logger.Info("seeded destination", "name", destName, "target_url", destURL)

	eventType := envOr("SEED_EVENT_TYPE", "push")
	ruleID := uuid.NewString()
	if err := pgStore.CreateDestinationRule(ctx, ruleID, destID, sourceName, eventType); err != nil {
		logger.Error("failed to create destination rule", "error", err)
		os.Exit(1)
	}
	logger.Info("seeded destination rule", "source", sourceName, "event_type", eventType)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
