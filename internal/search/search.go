// Package search is the full-text index adapter. Profiles and catalog
// items are the only document types the pipeline pushes; everything else
// is discoverable through the relational store.
package search

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Index provides full-text indexing on top of the store's sqlite handle
// using an FTS5 virtual table.
type Index struct {
	db *sqlx.DB
}

// New creates the search index, building the FTS5 table if needed
func New(ctx context.Context, db *sqlx.DB) (*Index, error) {
	_, err := db.ExecContext(ctx, `
		CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
			doc_id UNINDEXED,
			doc_type UNINDEXED,
			title,
			body,
			genre
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	return &Index{db: db}, nil
}

// Document types
const (
	DocProfile = "profile"
	DocTrack   = "track"
	DocAlbum   = "album"
)

// Document is one indexed entry
type Document struct {
	DocID   string `db:"doc_id"`
	DocType string `db:"doc_type"`
	Title   string `db:"title"`
	Body    string `db:"body"`
	Genre   string `db:"genre"`
}

// Upsert replaces the indexed document for doc.DocID
func (i *Index) Upsert(ctx context.Context, doc Document) error {
	tx, err := i.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM search_index WHERE doc_id = ?`, doc.DocID); err != nil {
		return fmt.Errorf("failed to clear old document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_index (doc_id, doc_type, title, body, genre)
		VALUES (?, ?, ?, ?, ?)`,
		doc.DocID, doc.DocType, doc.Title, doc.Body, doc.Genre); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index update: %w", err)
	}
	return nil
}

// Delete removes a document from the index
func (i *Index) Delete(ctx context.Context, docID string) error {
	if _, err := i.db.ExecContext(ctx,
		`DELETE FROM search_index WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Search runs a full-text query, best matches first
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}

	var docs []Document
	err := i.db.SelectContext(ctx, &docs, `
		SELECT doc_id, doc_type, title, body, genre FROM search_index
		WHERE search_index MATCH ?
		ORDER BY rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	return docs, nil
}
