package handlers

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/store"
)

// MembershipHandler maintains space membership rows from join/leave events
type MembershipHandler struct {
	store *store.Store
}

// NewMembershipHandler creates a membership handler
func NewMembershipHandler(st *store.Store) *MembershipHandler {
	return &MembershipHandler{store: st}
}

// Handle upserts a membership row on join and deletes it on leave
func (h *MembershipHandler) Handle(ctx context.Context, event *nostr.Event) error {
	spaceID := firstTagValue(event, "h")
	if spaceID == "" {
		return nil
	}

	switch event.Kind {
	case KindJoin:
		return h.store.AddMember(ctx, spaceID, event.PubKey, int64(event.CreatedAt))
	case KindLeave:
		return h.store.RemoveMember(ctx, spaceID, event.PubKey)
	}
	return nil
}
