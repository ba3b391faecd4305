package store

import (
	"context"
	"fmt"
)

// DeliveryMetrics holds aggregated delivery statistics for the dashboard.
type DeliveryMetrics struct {
	TotalDeliveries    int     `json:"total_deliveries"`
	DeliveredCount     int     `json:"delivered_count"`
	DeadCount          int     `json:"dead_count"`
	RetryingCount      int     `json:"retrying_count"`
	SuccessRate        float64 `json:"success_rate"`
	ActiveDestinations int     `json:"active_destinations"`
	TotalEvents        int     `json:"total_events"`
}

// GetDeliveryMetrics returns aggregated delivery statistics from the database.
func (s *PostgresStore) GetDeliveryMetrics(ctx context.Context) (*DeliveryMetrics, error) {
	var m DeliveryMetrics

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'DELIVERED') AS delivered,
			COUNT(*) FILTER (WHERE status = 'DEAD') AS dead,
			COUNT(*) FILTER (WHERE status = 'RETRYING') AS retrying
		FROM deliveries
	`).Scan(&m.TotalDeliveries, &m.DeliveredCount, &m.DeadCount, &m.RetryingCount)
	if err != nil {
		return nil, fmt.Errorf("querying delivery metrics: %w", err)
	}

	if m.TotalDeliveries > 0 {
		m.SuccessRate = float64(m.DeliveredCount) / float64(m.TotalDeliveries) * 100
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM destinations WHERE active = true`).Scan(&m.ActiveDestinations)
	if err != nil {
		return nil, fmt.Errorf("querying active destinations: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&m.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("querying total events: %w", err)
	}

	return &m, nil
}
