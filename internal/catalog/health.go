package catalog

import (
	"context"
	"fmt"
)

// HealthSummary describes aggregated catalog counts per workflow status.
type HealthSummary struct {
	Total   int
	Pending int
	Running int
	Done    int
	Review  int
	Error   int
}

// Health produces aggregate counts for diagnostics and the status CLI.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT workflow_status, COUNT(1) FROM items GROUP BY workflow_status`,
	)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("health counts: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending:
			summary.Pending += count
		case StatusRunning:
			summary.Running += count
		case StatusDone:
			summary.Done += count
		case StatusReview:
			summary.Review += count
		case StatusError:
			summary.Error += count
		}
	}
	if err := rows.Err(); err != nil {
		return HealthSummary{}, fmt.Errorf("iterate health rows: %w", err)
	}
	return summary, nil
}
