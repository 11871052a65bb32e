// Package feed assembles personalized feeds by reranking the 24h trending
// snapshot against the viewer's social graph: followed authors get a
// boost, muted authors are removed, and the result is cached per user.
package feed

import (
	"context"
	"sort"
	"time"

	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/handlers"
	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/store"
)

// basePeriod is the trending window personalized feeds rerank
const basePeriod = "24h"

const defaultPageSize = 50

// Cache stores assembled feeds per user. *cache.Cache satisfies this.
type Cache interface {
	GetFeed(ctx context.Context, userID string) ([]string, error)
	SetFeed(ctx context.Context, userID string, eventIDs []string, ttl time.Duration) error
	InvalidateFeed(ctx context.Context, userID string) error
}

// Service builds personalized feeds
type Service struct {
	store  *store.Store
	cache  Cache
	cfg    *config.Feed
	logger *ops.Logger
}

// New creates a feed service
func New(st *store.Store, c Cache, cfg *config.Feed, logger *ops.Logger) *Service {
	return &Service{
		store:  st,
		cache:  c,
		cfg:    cfg,
		logger: logger.WithComponent("feed"),
	}
}

// GetPersonalized returns one page of the user's feed, assembling and
// caching the full ordering on a cache miss. Cache failures degrade to a
// fresh assembly rather than an error.
func (s *Service) GetPersonalized(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if page < 0 {
		page = 0
	}

	cached, err := s.cache.GetFeed(ctx, userID)
	if err != nil {
		s.logger.LogStoreError("get_feed_cache", err)
	} else if cached != nil {
		return paginate(cached, page, pageSize), nil
	}

	ordered, err := s.assemble(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetFeed(ctx, userID, ordered, s.cfg.CacheTTL()); err != nil {
		s.logger.LogStoreError("set_feed_cache", err)
	}

	return paginate(ordered, page, pageSize), nil
}

// Invalidate drops the user's cached feed, forcing a rebuild on the next
// read. Called when the user's follow or mute list changes.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.cache.InvalidateFeed(ctx, userID)
}

// assemble builds the user's full feed ordering from the base trending
// snapshot and the user's latest follow and mute lists.
func (s *Service) assemble(ctx context.Context, userID string) ([]string, error) {
	follows, err := s.listedPubkeys(ctx, userID, handlers.KindFollowList)
	if err != nil {
		return nil, err
	}
	mutes, err := s.listedPubkeys(ctx, userID, handlers.KindMuteList)
	if err != nil {
		return nil, err
	}

	snaps, err := s.store.GetSnapshots(ctx, basePeriod)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(snaps))
	for i, snap := range snaps {
		ids[i] = snap.EventID
	}
	authors, err := s.store.GetEventAuthors(ctx, ids)
	if err != nil {
		return nil, err
	}

	type rankedItem struct {
		id    string
		score float64
	}
	ranked := make([]rankedItem, 0, len(snaps))
	for _, snap := range snaps {
		author, ok := authors[snap.EventID]
		if !ok {
			// Snapshot references an event the store no longer holds.
			continue
		}
		if mutes[author] {
			continue
		}

		score := float64(snap.Score)
		if follows[author] {
			score *= s.cfg.FollowBoost
		}
		ranked = append(ranked, rankedItem{id: snap.EventID, score: score})
	}

	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].id < ranked[b].id
	})

	ordered := make([]string, len(ranked))
	for i, item := range ranked {
		ordered[i] = item.id
	}
	return ordered, nil
}

// listedPubkeys returns the p-tagged pubkeys from the user's latest list
// event of the given kind. A user with no such list gets an empty set.
func (s *Service) listedPubkeys(ctx context.Context, userID string, kind int) (map[string]bool, error) {
	row, err := s.store.GetLatestByAuthorKind(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return map[string]bool{}, nil
	}

	event, err := row.ToNostr()
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "p" && tag[1] != "" {
			set[tag[1]] = true
		}
	}
	return set, nil
}

func paginate(ids []string, page, pageSize int) []string {
	start := page * pageSize
	if start >= len(ids) {
		return []string{}
	}
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}
