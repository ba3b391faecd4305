package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/webhookhub/webhookhub/internal/domain"
)

// ListActiveDestinationsForEvent returns every active destination whose
// rules match (sourceName, eventType).
func (s *PostgresStore) ListActiveDestinationsForEvent(ctx context.Context, sourceName, eventType string) ([]domain.Destination, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT d.id, d.name, d.target_url, d.active, d.rate_limit_per_second,
		       d.failure_threshold, d.cooldown_seconds, d.created_at
		FROM destinations d
		JOIN destination_rules r ON r.destination_id = d.id
		WHERE d.active = true
		  AND r.source_name = $1
		  AND r.event_type = $2
	`, sourceName, eventType)
	if err != nil {
		return nil, fmt.Errorf("listing matching destinations: %w", err)
	}
	defer rows.Close()

	var dests []domain.Destination
	for rows.Next() {
		var d domain.Destination
		if err := rows.Scan(&d.ID, &d.Name, &d.TargetURL, &d.Active, &d.RateLimitPerSecond, &d.FailureThreshold, &d.CooldownSeconds, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning destination: %w", err)
		}
		dests = append(dests, d)
	}
	if dests == nil {
		dests = []domain.Destination{}
	}
	return dests, nil
}

// GetDestination returns a destination by ID, or nil if it does not exist.
func (s *PostgresStore) GetDestination(ctx context.Context, id string) (*domain.Destination, error) {
	var d domain.Destination
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, target_url, active, rate_limit_per_second, failure_threshold, cooldown_seconds, created_at
		FROM destinations WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.TargetURL, &d.Active, &d.RateLimitPerSecond, &d.FailureThreshold, &d.CooldownSeconds, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying destination: %w", err)
	}
	return &d, nil
}

// ListDestinations returns every destination, active or not — used by the
// read-only operational API and the dashboard's destination health view.
func (s *PostgresStore) ListDestinations(ctx context.Context) ([]domain.Destination, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, target_url, active, rate_limit_per_second, failure_threshold, cooldown_seconds, created_at
		FROM destinations ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing destinations: %w", err)
	}
	defer rows.Close()

	var dests []domain.Destination
	for rows.Next() {
		var d domain.Destination
		if err := rows.Scan(&d.ID, &d.Name, &d.TargetURL, &d.Active, &d.RateLimitPerSecond, &d.FailureThreshold, &d.CooldownSeconds, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning destination: %w", err)
		}
		dests = append(dests, d)
	}
	if dests == nil {
		dests = []domain.Destination{}
	}
	return dests, nil
}

// CreateDestination and CreateDestinationRule are used only by development
// seed tooling — management CRUD for destinations is out of scope for the
// core.
func (s *PostgresStore) CreateDestination(ctx context.Context, id, name, targetURL string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO destinations (id, name, target_url, active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT DO NOTHING
	`, id, name, targetURL)
	if err != nil {
		return fmt.Errorf("inserting destination: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateDestinationRule(ctx context.Context, id, destinationID, sourceName, eventType string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO destination_rules (id, destination_id, source_name, event_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (destination_id, source_name, event_type) DO NOTHING
	`, id, destinationID, sourceName, eventType)
	if err != nil {
		return fmt.Errorf("inserting destination rule: %w", err)
	}
	return nil
}
