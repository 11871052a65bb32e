package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetWatermark reads a named ingest cursor. Returns 0 when the cursor has
// never been written (first start replays everything the relay still holds).
func (s *Store) GetWatermark(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.GetContext(ctx, &value, `SELECT value FROM ingest_state WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get watermark: %w", err)
	}
	return value, nil
}

// AdvanceWatermark raises a named ingest cursor to value. Lower values are
// ignored, keeping the cursor monotonic even when events arrive out of order.
func (s *Store) AdvanceWatermark(ctx context.Context, name string, value int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_state (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = MAX(value, excluded.value)`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}
