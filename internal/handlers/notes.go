package handlers

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/store"
)

// NoteHandler counts replies against their parent note
type NoteHandler struct {
	store *store.Store
}

// NewNoteHandler creates a note handler
func NewNoteHandler(st *store.Store) *NoteHandler {
	return &NoteHandler{store: st}
}

// Handle bumps the parent's comment counter when the note is a reply.
// Root notes produce no counter movement.
func (h *NoteHandler) Handle(ctx context.Context, event *nostr.Event) error {
	parentID := replyTarget(event)
	if parentID == "" {
		return nil
	}
	return h.store.IncrementComment(ctx, parentID)
}

// replyTarget returns the direct parent of a reply, preferring marked e
// tags ("reply", then "root") and falling back to the last positional e
// tag.
func replyTarget(event *nostr.Event) string {
	var root, reply, last string

	for _, tag := range event.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		last = tag[1]

		if len(tag) >= 4 {
			switch tag[3] {
			case "reply":
				reply = tag[1]
			case "root":
				root = tag[1]
			}
		}
	}

	if reply != "" {
		return reply
	}
	if root != "" {
		return root
	}
	return last
}
