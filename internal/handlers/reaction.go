package handlers

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/store"
)

// ReactionHandler counts reactions for the target event and both authors
type ReactionHandler struct {
	store *store.Store
}

// NewReactionHandler creates a reaction handler
func NewReactionHandler(st *store.Store) *ReactionHandler {
	return &ReactionHandler{store: st}
}

// Handle requires a target event and a space scope. The target's reaction
// counter and the reactor's "given" counter always move; the target
// author's "received" counter moves only when the event names one.
func (h *ReactionHandler) Handle(ctx context.Context, event *nostr.Event) error {
	targetID := firstTagValue(event, "e")
	spaceID := firstTagValue(event, "h")
	if targetID == "" || spaceID == "" {
		return nil
	}

	if err := h.store.IncrementReaction(ctx, targetID); err != nil {
		return err
	}

	day := store.Day(int64(event.CreatedAt))
	if err := h.store.BumpReactionsGiven(ctx, event.PubKey, day); err != nil {
		return err
	}

	if targetAuthor := firstTagValue(event, "p"); targetAuthor != "" {
		return h.store.BumpReactionsReceived(ctx, targetAuthor, day)
	}
	return nil
}
