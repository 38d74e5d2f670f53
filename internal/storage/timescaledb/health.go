package timescaledb

import (
	"context"
	"fmt"
	"time"
)

// Ping checks that the database answers within timeout.
func (t *Store) Ping(ctx context.Context, timeout time.Duration) error {
	sqlDB, err := t.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("TimescaleDB ping failed: %w", err)
	}
	return nil
}
