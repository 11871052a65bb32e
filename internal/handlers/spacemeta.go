package handlers

import (
	"context"
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/store"
)

// SpaceMetaHandler keeps space display metadata current
type SpaceMetaHandler struct {
	store *store.Store
}

// NewSpaceMetaHandler creates a space metadata handler
func NewSpaceMetaHandler(st *store.Store) *SpaceMetaHandler {
	return &SpaceMetaHandler{store: st}
}

// Handle updates the space's name/about/picture. Metadata tags win over the
// JSON content document when both carry a field.
func (h *SpaceMetaHandler) Handle(ctx context.Context, event *nostr.Event) error {
	spaceID := firstTagValue(event, "d")
	if spaceID == "" {
		spaceID = firstTagValue(event, "h")
	}
	if spaceID == "" {
		return nil
	}

	var doc struct {
		Name    string `json:"name"`
		About   string `json:"about"`
		Picture string `json:"picture"`
	}
	if event.Content != "" {
		// Malformed content is fine; tags may still carry the fields.
		_ = json.Unmarshal([]byte(event.Content), &doc)
	}

	if v := firstTagValue(event, "name"); v != "" {
		doc.Name = v
	}
	if v := firstTagValue(event, "about"); v != "" {
		doc.About = v
	}
	if v := firstTagValue(event, "picture"); v != "" {
		doc.Picture = v
	}

	return h.store.UpsertSpace(ctx, &store.Space{
		ID:        spaceID,
		Name:      doc.Name,
		About:     doc.About,
		Picture:   doc.Picture,
		UpdatedAt: int64(event.CreatedAt),
	})
}
