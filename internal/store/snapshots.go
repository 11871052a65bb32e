package store

import (
	"context"
	"fmt"
)

// Snapshot is one ranked row of a trending window
type Snapshot struct {
	Period  string `db:"period"`
	Kind    int    `db:"kind"`
	EventID string `db:"event_id"`
	Score   int64  `db:"score"`
}

// ReplaceSnapshots swaps a period's snapshot set wholesale. The delete and
// inserts share one transaction so readers never observe an empty window.
func (s *Store) ReplaceSnapshots(ctx context.Context, period string, snapshots []Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trending_snapshots WHERE period = ?`, period); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}

	for _, snap := range snapshots {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trending_snapshots (period, kind, event_id, score)
			VALUES (?, ?, ?, ?)`,
			period, snap.Kind, snap.EventID, snap.Score); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return nil
}

// GetSnapshots returns a period's snapshot rows ordered by score descending
func (s *Store) GetSnapshots(ctx context.Context, period string) ([]Snapshot, error) {
	var rows []Snapshot
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM trending_snapshots
		WHERE period = ?
		ORDER BY score DESC, event_id`, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	return rows, nil
}

// GetSnapshotsByKind returns a period's snapshot rows for one kind, ordered
// by score descending.
func (s *Store) GetSnapshotsByKind(ctx context.Context, period string, kind int) ([]Snapshot, error) {
	var rows []Snapshot
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM trending_snapshots
		WHERE period = ? AND kind = ?
		ORDER BY score DESC, event_id`, period, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots by kind: %w", err)
	}
	return rows, nil
}
