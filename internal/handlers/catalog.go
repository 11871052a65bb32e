package handlers

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/search"
)

// CatalogHandler indexes public tracks and albums for search
type CatalogHandler struct {
	index *search.Index
}

// NewCatalogHandler creates a catalog handler
func NewCatalogHandler(idx *search.Index) *CatalogHandler {
	return &CatalogHandler{index: idx}
}

// Address composes the addressable identifier for a replaceable catalog
// item: kind, author, and the item's chosen slug.
func Address(kind int, pubkey, slug string) string {
	return fmt.Sprintf("%d:%s:%s", kind, pubkey, slug)
}

// Handle pushes a catalog item's searchable fields into the index. Items
// marked non-public are removed instead, so a later privacy flip unlists
// an already indexed item.
func (h *CatalogHandler) Handle(ctx context.Context, event *nostr.Event) error {
	slug := firstTagValue(event, "d")
	if slug == "" {
		return nil
	}

	address := Address(event.Kind, event.PubKey, slug)

	if !IsPublic(event) {
		return h.index.Delete(ctx, address)
	}

	docType := search.DocTrack
	if event.Kind == KindAlbum {
		docType = search.DocAlbum
	}

	contributor := firstTagValue(event, "p")
	if contributor == "" {
		contributor = event.PubKey
	}

	return h.index.Upsert(ctx, search.Document{
		DocID:   address,
		DocType: docType,
		Title:   firstTagValue(event, "title"),
		Body:    contributor,
		Genre:   firstTagValue(event, "genre"),
	})
}
