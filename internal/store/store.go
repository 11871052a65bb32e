// Package store is the relational store adapter for the ingestion core:
// canonical events, engagement counters, daily activity stats, profiles,
// space memberships, trending snapshots, and the ingest watermark.
//
// Every increment is a single UPSERT statement so concurrent handler
// execution stays atomic at the storage layer without any coordination
// in the ingest loop.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/reverbhq/reverb/internal/config"
)

// Store provides access to the relational store
type Store struct {
	db *sqlx.DB
}

// New opens the sqlite database and runs migrations
func New(ctx context.Context, cfg *config.Storage) (*Store, error) {
	db, err := sqlx.Open("sqlite3", cfg.SQLitePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// DB returns the underlying database handle
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			pubkey     TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			kind       INTEGER NOT NULL,
			tags       TEXT NOT NULL DEFAULT '[]',
			content    TEXT NOT NULL DEFAULT '',
			sig        TEXT NOT NULL DEFAULT '',
			public     INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind_created ON events(kind, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_pubkey_kind ON events(pubkey, kind, created_at)`,

		`CREATE TABLE IF NOT EXISTS profiles (
			pubkey       TEXT PRIMARY KEY,
			name         TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			about        TEXT NOT NULL DEFAULT '',
			picture      TEXT NOT NULL DEFAULT '',
			nip05        TEXT NOT NULL DEFAULT '',
			updated_at   INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS spaces (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			about      TEXT NOT NULL DEFAULT '',
			picture    TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS space_members (
			space_id  TEXT NOT NULL,
			pubkey    TEXT NOT NULL,
			joined_at INTEGER NOT NULL,
			PRIMARY KEY (space_id, pubkey)
		)`,

		`CREATE TABLE IF NOT EXISTS space_daily_stats (
			space_id TEXT NOT NULL,
			day      TEXT NOT NULL,
			messages INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (space_id, day)
		)`,

		`CREATE TABLE IF NOT EXISTS space_daily_authors (
			space_id TEXT NOT NULL,
			day      TEXT NOT NULL,
			pubkey   TEXT NOT NULL,
			PRIMARY KEY (space_id, day, pubkey)
		)`,

		`CREATE TABLE IF NOT EXISTS author_daily_stats (
			pubkey             TEXT NOT NULL,
			day                TEXT NOT NULL,
			messages           INTEGER NOT NULL DEFAULT 0,
			reactions_given    INTEGER NOT NULL DEFAULT 0,
			reactions_received INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (pubkey, day)
		)`,

		`CREATE TABLE IF NOT EXISTS engagement (
			event_id       TEXT PRIMARY KEY,
			reaction_count INTEGER NOT NULL DEFAULT 0,
			comment_count  INTEGER NOT NULL DEFAULT 0,
			zap_count      INTEGER NOT NULL DEFAULT 0,
			zap_sats_total INTEGER NOT NULL DEFAULT 0,
			view_count     INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS trending_snapshots (
			period   TEXT NOT NULL,
			kind     INTEGER NOT NULL,
			event_id TEXT NOT NULL,
			score    INTEGER NOT NULL,
			PRIMARY KEY (period, event_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_period_score ON trending_snapshots(period, score DESC)`,

		`CREATE TABLE IF NOT EXISTS ingest_state (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
