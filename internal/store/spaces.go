package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Space is a group's display metadata
type Space struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	About     string `db:"about"`
	Picture   string `db:"picture"`
	UpdatedAt int64  `db:"updated_at"`
}

// Day formats a unix timestamp as the calendar day used for daily stats
func Day(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// UpsertSpace updates a space's display metadata
func (s *Store) UpsertSpace(ctx context.Context, space *Space) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spaces (id, name, about, picture, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			about = excluded.about,
			picture = excluded.picture,
			updated_at = excluded.updated_at`,
		space.ID, space.Name, space.About, space.Picture, space.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert space: %w", err)
	}
	return nil
}

// GetSpace returns a space by id, or nil when unknown
func (s *Store) GetSpace(ctx context.Context, id string) (*Space, error) {
	var space Space
	err := s.db.GetContext(ctx, &space, `SELECT * FROM spaces WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space: %w", err)
	}
	return &space, nil
}

// AddMember upserts a space membership row
func (s *Store) AddMember(ctx context.Context, spaceID, pubkey string, joinedAt int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO space_members (space_id, pubkey, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT(space_id, pubkey) DO NOTHING`,
		spaceID, pubkey, joinedAt)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember deletes a space membership row
func (s *Store) RemoveMember(ctx context.Context, spaceID, pubkey string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM space_members WHERE space_id = ? AND pubkey = ?`,
		spaceID, pubkey)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// IsMember reports whether the pubkey holds a membership row for the space
func (s *Store) IsMember(ctx context.Context, spaceID, pubkey string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM space_members WHERE space_id = ? AND pubkey = ?`,
		spaceID, pubkey)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// BumpSpaceMessage increments the space's daily message counter and records
// the author in the daily author set.
func (s *Store) BumpSpaceMessage(ctx context.Context, spaceID, day, pubkey string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO space_daily_stats (space_id, day, messages) VALUES (?, ?, 1)
		ON CONFLICT(space_id, day) DO UPDATE SET messages = messages + 1`,
		spaceID, day); err != nil {
		return fmt.Errorf("failed to bump space messages: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO space_daily_authors (space_id, day, pubkey) VALUES (?, ?, ?)
		ON CONFLICT(space_id, day, pubkey) DO NOTHING`,
		spaceID, day, pubkey); err != nil {
		return fmt.Errorf("failed to record space author: %w", err)
	}
	return nil
}

// SpaceDailyStats are one space's counters for one calendar day
type SpaceDailyStats struct {
	Messages      int64
	UniqueAuthors int64
}

// GetSpaceDailyStats returns the message count and unique author count for
// a space on a given day.
func (s *Store) GetSpaceDailyStats(ctx context.Context, spaceID, day string) (*SpaceDailyStats, error) {
	stats := &SpaceDailyStats{}

	err := s.db.GetContext(ctx, &stats.Messages, `
		SELECT COALESCE(SUM(messages), 0) FROM space_daily_stats
		WHERE space_id = ? AND day = ?`, spaceID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get space daily stats: %w", err)
	}

	err = s.db.GetContext(ctx, &stats.UniqueAuthors, `
		SELECT COUNT(*) FROM space_daily_authors
		WHERE space_id = ? AND day = ?`, spaceID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to count space authors: %w", err)
	}

	return stats, nil
}

// BumpAuthorMessages increments an author's daily message counter
func (s *Store) BumpAuthorMessages(ctx context.Context, pubkey, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO author_daily_stats (pubkey, day, messages) VALUES (?, ?, 1)
		ON CONFLICT(pubkey, day) DO UPDATE SET messages = messages + 1`,
		pubkey, day)
	if err != nil {
		return fmt.Errorf("failed to bump author messages: %w", err)
	}
	return nil
}

// BumpReactionsGiven increments an author's daily reactions-given counter
func (s *Store) BumpReactionsGiven(ctx context.Context, pubkey, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO author_daily_stats (pubkey, day, reactions_given) VALUES (?, ?, 1)
		ON CONFLICT(pubkey, day) DO UPDATE SET reactions_given = reactions_given + 1`,
		pubkey, day)
	if err != nil {
		return fmt.Errorf("failed to bump reactions given: %w", err)
	}
	return nil
}

// BumpReactionsReceived increments an author's daily reactions-received counter
func (s *Store) BumpReactionsReceived(ctx context.Context, pubkey, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO author_daily_stats (pubkey, day, reactions_received) VALUES (?, ?, 1)
		ON CONFLICT(pubkey, day) DO UPDATE SET reactions_received = reactions_received + 1`,
		pubkey, day)
	if err != nil {
		return fmt.Errorf("failed to bump reactions received: %w", err)
	}
	return nil
}

// AuthorDailyStats are one author's counters for one calendar day
type AuthorDailyStats struct {
	Pubkey            string `db:"pubkey"`
	Day               string `db:"day"`
	Messages          int64  `db:"messages"`
	ReactionsGiven    int64  `db:"reactions_given"`
	ReactionsReceived int64  `db:"reactions_received"`
}

// GetAuthorDailyStats returns an author's counters for a day; zeros when
// the author was inactive.
func (s *Store) GetAuthorDailyStats(ctx context.Context, pubkey, day string) (*AuthorDailyStats, error) {
	var stats AuthorDailyStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT * FROM author_daily_stats WHERE pubkey = ? AND day = ?`, pubkey, day)
	if errors.Is(err, sql.ErrNoRows) {
		return &AuthorDailyStats{Pubkey: pubkey, Day: day}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get author daily stats: %w", err)
	}
	return &stats, nil
}
