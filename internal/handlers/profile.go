package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/search"
	"github.com/reverbhq/reverb/internal/store"
)

// ProfileHandler caches author profiles and pushes them into the search index
type ProfileHandler struct {
	store *store.Store
	index *search.Index
}

// NewProfileHandler creates a profile handler
func NewProfileHandler(st *store.Store, idx *search.Index) *ProfileHandler {
	return &ProfileHandler{store: st, index: idx}
}

type profileDoc struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	About       string `json:"about"`
	Picture     string `json:"picture"`
	NIP05       string `json:"nip05"`
}

// Handle upserts the cached profile row and its search document
func (h *ProfileHandler) Handle(ctx context.Context, event *nostr.Event) error {
	var doc profileDoc
	if err := json.Unmarshal([]byte(event.Content), &doc); err != nil {
		// Unparseable profile content is dropped, not an error.
		return nil
	}

	profile := &store.Profile{
		Pubkey:      event.PubKey,
		Name:        doc.Name,
		DisplayName: doc.DisplayName,
		About:       doc.About,
		Picture:     doc.Picture,
		NIP05:       doc.NIP05,
		UpdatedAt:   int64(event.CreatedAt),
	}
	if err := h.store.UpsertProfile(ctx, profile); err != nil {
		return err
	}

	title := doc.DisplayName
	if title == "" {
		title = doc.Name
	}
	return h.index.Upsert(ctx, search.Document{
		DocID:   "profile:" + event.PubKey,
		DocType: search.DocProfile,
		Title:   title,
		Body:    strings.TrimSpace(doc.Name + " " + doc.About + " " + doc.NIP05),
	})
}
