package handlers

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/store"
)

// ChatHandler counts chat activity per space and per author
type ChatHandler struct {
	store *store.Store
}

// NewChatHandler creates a chat handler
func NewChatHandler(st *store.Store) *ChatHandler {
	return &ChatHandler{store: st}
}

// Handle bumps the space's daily message/author counters and the author's
// daily message counter. Messages without a space scope are dropped.
func (h *ChatHandler) Handle(ctx context.Context, event *nostr.Event) error {
	spaceID := firstTagValue(event, "h")
	if spaceID == "" {
		return nil
	}

	day := store.Day(int64(event.CreatedAt))
	if err := h.store.BumpSpaceMessage(ctx, spaceID, day, event.PubKey); err != nil {
		return err
	}
	return h.store.BumpAuthorMessages(ctx, event.PubKey, day)
}
