// Package handlers contains the per-kind event handlers. Each handler
// receives one verified, non-duplicate event and performs upserts that are
// safe to replay; a handler failure never affects other handlers or the
// ingestion loop.
package handlers

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/search"
	"github.com/reverbhq/reverb/internal/store"
)

// Event kinds processed by this platform
const (
	KindProfile    = 0
	KindNote       = 1
	KindFollowList = 3
	KindReaction   = 7
	KindChat       = 9
	KindJoin       = 9021
	KindLeave      = 9022
	KindZapReceipt = 9735
	KindMuteList   = 10000
	KindLongForm   = 30023
	KindTrack      = 31337
	KindAlbum      = 31338
	KindSpaceMeta  = 39000
)

// AllowedKinds is the fixed allow-list the ingester subscribes with
func AllowedKinds() []int {
	return []int{
		KindProfile, KindNote, KindFollowList, KindReaction, KindChat,
		KindJoin, KindLeave, KindZapReceipt, KindMuteList, KindLongForm,
		KindTrack, KindAlbum, KindSpaceMeta,
	}
}

// Handler processes one event of a specific kind
type Handler interface {
	Handle(ctx context.Context, event *nostr.Event) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, event *nostr.Event) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, event *nostr.Event) error {
	return f(ctx, event)
}

// Manager routes events to kind handlers
type Manager struct {
	handlers map[int]Handler
}

// NewManager wires the full handler set against the given store and index
func NewManager(st *store.Store, idx *search.Index, logger *ops.Logger) *Manager {
	m := &Manager{handlers: make(map[int]Handler)}

	m.Register(KindProfile, NewProfileHandler(st, idx))
	m.Register(KindNote, NewNoteHandler(st))
	m.Register(KindReaction, NewReactionHandler(st))
	m.Register(KindChat, NewChatHandler(st))
	m.Register(KindJoin, NewMembershipHandler(st))
	m.Register(KindLeave, NewMembershipHandler(st))
	m.Register(KindZapReceipt, NewZapHandler(st, logger))
	m.Register(KindSpaceMeta, NewSpaceMetaHandler(st))

	catalog := NewCatalogHandler(idx)
	m.Register(KindTrack, catalog)
	m.Register(KindAlbum, catalog)

	return m
}

// Register installs a handler for a kind, replacing any previous one
func (m *Manager) Register(kind int, h Handler) {
	m.handlers[kind] = h
}

// Dispatch routes an event to its kind handler. Kinds without a handler
// are stored upstream and need no further processing here.
func (m *Manager) Dispatch(ctx context.Context, event *nostr.Event) error {
	h, ok := m.handlers[event.Kind]
	if !ok {
		return nil
	}
	return h.Handle(ctx, event)
}

// firstTagValue returns the second element of the first tag named key
func firstTagValue(event *nostr.Event, key string) string {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == key {
			return tag[1]
		}
	}
	return ""
}

// IsPublic reports whether the event is publicly listable. Catalog items
// can opt out with a status tag.
func IsPublic(event *nostr.Event) bool {
	return firstTagValue(event, "status") != "private"
}
