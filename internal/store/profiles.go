package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Profile is a cached author profile row
type Profile struct {
	Pubkey      string `db:"pubkey"`
	Name        string `db:"name"`
	DisplayName string `db:"display_name"`
	About       string `db:"about"`
	Picture     string `db:"picture"`
	NIP05       string `db:"nip05"`
	UpdatedAt   int64  `db:"updated_at"`
}

// UpsertProfile replaces the cached profile for a pubkey, keeping the newest
// version when replays arrive out of order.
func (s *Store) UpsertProfile(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (pubkey, name, display_name, about, picture, nip05, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			name = excluded.name,
			display_name = excluded.display_name,
			about = excluded.about,
			picture = excluded.picture,
			nip05 = excluded.nip05,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= profiles.updated_at`,
		p.Pubkey, p.Name, p.DisplayName, p.About, p.Picture, p.NIP05, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the cached profile for a pubkey, or nil when unknown
func (s *Store) GetProfile(ctx context.Context, pubkey string) (*Profile, error) {
	var p Profile
	err := s.db.GetContext(ctx, &p, `SELECT * FROM profiles WHERE pubkey = ?`, pubkey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}
