package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/webhookhub/webhookhub/internal/domain"
)

// InsertDelivery creates the PENDING row for one (eventID, destinationID)
// pair. Returns the created row.
func (s *PostgresStore) InsertDelivery(ctx context.Context, id, eventID, destinationID string, maxAttempts int) (*domain.Delivery, error) {
	var d domain.Delivery
	var lastErr *string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO deliveries (id, event_id, destination_id, status, attempts, max_attempts)
		VALUES ($1, $2, $3, 'PENDING', 0, $4)
		RETURNING id, event_id, destination_id, status, attempts, max_attempts,
			last_error, last_attempt_at, delivered_at, created_at
	`, id, eventID, destinationID, maxAttempts).Scan(
		&d.ID, &d.EventID, &d.DestinationID, &d.Status, &d.Attempts, &d.MaxAttempts,
		&lastErr, &d.LastAttemptAt, &d.DeliveredAt, &d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting delivery: %w", err)
	}
	if lastErr != nil {
		d.LastError = *lastErr
	}
	return &d, nil
}

// UpdateStatus advances a delivery to status with the given attempt count
// and optional error/delivered timestamp. The WHERE clause enforces that a
// delivery already in a terminal status (DELIVERED, DEAD) can never be
// mutated again, even by a late or duplicate message redelivery.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus, attempts int, lastErr string, deliveredAt *time.Time) error {
	var lastErrArg *string
	if lastErr != "" {
		lastErrArg = &lastErr
	}

	now := time.Now()
	_, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = $2, attempts = $3, last_error = $4, last_attempt_at = $5, delivered_at = $6
		WHERE id = $1 AND status NOT IN ('DELIVERED', 'DEAD')
	`, id, status, attempts, lastErrArg, now, deliveredAt)
	if err != nil {
		return fmt.Errorf("updating delivery status: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	var d domain.Delivery
	var lastErr *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, event_id, destination_id, status, attempts, max_attempts,
			last_error, last_attempt_at, delivered_at, created_at
		FROM deliveries WHERE id = $1
	`, id).Scan(
		&d.ID, &d.EventID, &d.DestinationID, &d.Status, &d.Attempts, &d.MaxAttempts,
		&lastErr, &d.LastAttemptAt, &d.DeliveredAt, &d.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying delivery: %w", err)
	}
	if lastErr != nil {
		d.LastError = *lastErr
	}
	return &d, nil
}

// ListDeliveries returns deliveries with optional filtering, newest first.
func (s *PostgresStore) ListDeliveries(ctx context.Context, eventID, destinationID, status string, limit int) ([]domain.Delivery, error) {
	query := `SELECT id, event_id, destination_id, status, attempts, max_attempts,
		last_error, last_attempt_at, delivered_at, created_at FROM deliveries`
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if eventID != "" {
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", argIdx))
		args = append(args, eventID)
		argIdx++
	}
	if destinationID != "" {
		conditions = append(conditions, fmt.Sprintf("destination_id = $%d", argIdx))
		args = append(args, destinationID)
		argIdx++
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, status)
		argIdx++
	}

	if len(conditions) > 0 {
		query += " WHERE "
		for i, c := range conditions {
			if i > 0 {
				query += " AND "
			}
			query += c
		}
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		var lastErr *string
		if err := rows.Scan(
			&d.ID, &d.EventID, &d.DestinationID, &d.Status, &d.Attempts, &d.MaxAttempts,
			&lastErr, &d.LastAttemptAt, &d.DeliveredAt, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		if lastErr != nil {
			d.LastError = *lastErr
		}
		deliveries = append(deliveries, d)
	}
	if deliveries == nil {
		deliveries = []domain.Delivery{}
	}
	return deliveries, nil
}
