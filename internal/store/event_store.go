package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/webhookhub/webhookhub/internal/domain"
)

const pgUniqueViolation = "23505"

// InsertEventIfAbsent inserts event unless an event with the same
// (SourceName, IdempotencyKey) already exists, in which case it returns
// inserted=false and the caller's duplicate handling takes over — the
// event itself is never mutated.
func (s *PostgresStore) InsertEventIfAbsent(ctx context.Context, event *domain.Event) (inserted bool, err error) {
	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (id, source_name, event_type, idempotency_key, payload_json, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.SourceName, event.EventType, event.IdempotencyKey, event.PayloadJSON, event.ReceivedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("inserting event: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var e domain.Event
	err := s.pool.QueryRow(ctx, `
		SELECT id, source_name, event_type, idempotency_key, payload_json, received_at
		FROM events WHERE id = $1
	`, id).Scan(&e.ID, &e.SourceName, &e.EventType, &e.IdempotencyKey, &e.PayloadJSON, &e.ReceivedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, eventType string, limit int) ([]domain.Event, error) {
	query := `SELECT id, source_name, event_type, idempotency_key, payload_json, received_at FROM events`
	args := []interface{}{}
	argIdx := 1

	if eventType != "" {
		query += fmt.Sprintf(" WHERE event_type = $%d", argIdx)
		args = append(args, eventType)
		argIdx++
	}

	query += " ORDER BY received_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.SourceName, &e.EventType, &e.IdempotencyKey, &e.PayloadJSON, &e.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
