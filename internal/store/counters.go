package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Engagement holds the per-event aggregate counters read by the trending
// computer and written by the kind handlers (views by the route layer).
type Engagement struct {
	EventID       string `db:"event_id"`
	ReactionCount int64  `db:"reaction_count"`
	CommentCount  int64  `db:"comment_count"`
	ZapCount      int64  `db:"zap_count"`
	ZapSatsTotal  int64  `db:"zap_sats_total"`
	ViewCount     int64  `db:"view_count"`
}

// IncrementReaction bumps the reaction counter for an event
func (s *Store) IncrementReaction(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement (event_id, reaction_count) VALUES (?, 1)
		ON CONFLICT(event_id) DO UPDATE SET reaction_count = reaction_count + 1`,
		eventID)
	if err != nil {
		return fmt.Errorf("failed to increment reaction: %w", err)
	}
	return nil
}

// IncrementComment bumps the comment counter for an event
func (s *Store) IncrementComment(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement (event_id, comment_count) VALUES (?, 1)
		ON CONFLICT(event_id) DO UPDATE SET comment_count = comment_count + 1`,
		eventID)
	if err != nil {
		return fmt.Errorf("failed to increment comment: %w", err)
	}
	return nil
}

// AddZap adds a zap receipt's amount to an event's running totals
func (s *Store) AddZap(ctx context.Context, eventID string, sats int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement (event_id, zap_count, zap_sats_total) VALUES (?, 1, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			zap_count = zap_count + 1,
			zap_sats_total = zap_sats_total + excluded.zap_sats_total`,
		eventID, sats)
	if err != nil {
		return fmt.Errorf("failed to add zap: %w", err)
	}
	return nil
}

// IncrementView bumps the view counter for an event. Exposed for the route
// layer; the pipeline itself never records views.
func (s *Store) IncrementView(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement (event_id, view_count) VALUES (?, 1)
		ON CONFLICT(event_id) DO UPDATE SET view_count = view_count + 1`,
		eventID)
	if err != nil {
		return fmt.Errorf("failed to increment view: %w", err)
	}
	return nil
}

// GetEngagement returns the counters for one event; zero counters when the
// event has no interactions yet.
func (s *Store) GetEngagement(ctx context.Context, eventID string) (*Engagement, error) {
	var eng Engagement
	err := s.db.GetContext(ctx, &eng, `SELECT * FROM engagement WHERE event_id = ?`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Engagement{EventID: eventID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get engagement: %w", err)
	}
	return &eng, nil
}

// GetEngagementBatch returns counters for many events in one query. Events
// without interactions are absent from the result.
func (s *Store) GetEngagementBatch(ctx context.Context, eventIDs []string) (map[string]*Engagement, error) {
	if len(eventIDs) == 0 {
		return map[string]*Engagement{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM engagement WHERE event_id IN (?)`, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build engagement query: %w", err)
	}

	var rows []Engagement
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to fetch engagement batch: %w", err)
	}

	result := make(map[string]*Engagement, len(rows))
	for i := range rows {
		result[rows[i].EventID] = &rows[i]
	}
	return result, nil
}
