package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/webhookhub/webhookhub/internal/domain"
)

// GetSourceByName returns the source for name, active or not, or nil if it
// does not exist. The pipeline checks Active itself, so not-found and
// inactive stay distinct in its ordered validation.
func (s *PostgresStore) GetSourceByName(ctx context.Context, name string) (*domain.Source, error) {
	var src domain.Source
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, hmac_secret, active, created_at
		FROM sources WHERE name = $1
	`, name).Scan(&src.ID, &src.Name, &src.HMACSecret, &src.Active, &src.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying source: %w", err)
	}
	return &src, nil
}

// CreateSource inserts a source. Used only by development seed tooling —
// the core never creates sources.
func (s *PostgresStore) CreateSource(ctx context.Context, id, name, hmacSecret string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sources (id, name, hmac_secret, active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (name) DO NOTHING
	`, id, name, hmacSecret)
	if err != nil {
		return fmt.Errorf("inserting source: %w", err)
	}
	return nil
}
