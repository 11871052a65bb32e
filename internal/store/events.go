package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/nbd-wtf/go-nostr"
)

// EventRow is a canonical event as persisted
type EventRow struct {
	ID        string `db:"id"`
	Pubkey    string `db:"pubkey"`
	CreatedAt int64  `db:"created_at"`
	Kind      int    `db:"kind"`
	Tags      string `db:"tags"`
	Content   string `db:"content"`
	Sig       string `db:"sig"`
	Public    bool   `db:"public"`
}

// ToNostr converts a stored row back into a nostr event
func (r *EventRow) ToNostr() (*nostr.Event, error) {
	var tags nostr.Tags
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return &nostr.Event{
		ID:        r.ID,
		PubKey:    r.Pubkey,
		CreatedAt: nostr.Timestamp(r.CreatedAt),
		Kind:      r.Kind,
		Tags:      tags,
		Content:   r.Content,
		Sig:       r.Sig,
	}, nil
}

// UpsertEvent stores a verified event. Replayed events are ignored, which
// keeps the operation idempotent under at-least-once delivery.
func (s *Store) UpsertEvent(ctx context.Context, event *nostr.Event, public bool) error {
	tags, err := json.Marshal(event.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, pubkey, created_at, kind, tags, content, sig, public)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		event.ID, event.PubKey, int64(event.CreatedAt), event.Kind,
		string(tags), event.Content, event.Sig, public)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

// GetEvent returns a stored event by id, or nil when absent
func (s *Store) GetEvent(ctx context.Context, id string) (*EventRow, error) {
	var row EventRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &row, nil
}

// GetEventAuthors returns a map of event id to author pubkey for the given
// ids in a single query.
func (s *Store) GetEventAuthors(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	query, args, err := sqlx.In(`SELECT id, pubkey FROM events WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build author query: %w", err)
	}

	var rows []struct {
		ID     string `db:"id"`
		Pubkey string `db:"pubkey"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to fetch authors: %w", err)
	}

	authors := make(map[string]string, len(rows))
	for _, row := range rows {
		authors[row.ID] = row.Pubkey
	}
	return authors, nil
}

// GetLatestByAuthorKind returns the newest event of a kind authored by the
// pubkey, or nil when the author has never published one.
func (s *Store) GetLatestByAuthorKind(ctx context.Context, pubkey string, kind int) (*EventRow, error) {
	var row EventRow
	err := s.db.GetContext(ctx, &row, `
		SELECT * FROM events
		WHERE pubkey = ? AND kind = ?
		ORDER BY created_at DESC
		LIMIT 1`, pubkey, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest event: %w", err)
	}
	return &row, nil
}

// CandidateEvent is the slice of an event the trending computer scores
type CandidateEvent struct {
	ID        string `db:"id"`
	Pubkey    string `db:"pubkey"`
	CreatedAt int64  `db:"created_at"`
	Kind      int    `db:"kind"`
}

// SelectCandidates returns public events of the given kinds created at or
// after since.
func (s *Store) SelectCandidates(ctx context.Context, kinds []int, since int64) ([]CandidateEvent, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, pubkey, created_at, kind FROM events
		WHERE kind IN (?) AND created_at >= ? AND public = 1`, kinds, since)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate query: %w", err)
	}

	var rows []CandidateEvent
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select candidates: %w", err)
	}
	return rows, nil
}
