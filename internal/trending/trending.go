// Package trending periodically recomputes ranked snapshots of recent
// public content across several time windows and publishes each window to
// the cache for cheap reads.
package trending

import (
	"context"
	"sort"
	"time"

	"github.com/reverbhq/reverb/internal/cache"
	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/handlers"
	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/store"
)

// Window is one trending time window
type Window struct {
	Period string
	Span   time.Duration
}

// Windows returns the computed trending windows, shortest first
func Windows() []Window {
	return []Window{
		{Period: "1h", Span: time.Hour},
		{Period: "6h", Span: 6 * time.Hour},
		{Period: "24h", Span: 24 * time.Hour},
		{Period: "7d", Span: 7 * 24 * time.Hour},
	}
}

// rankedKinds are the content kinds eligible for trending. Chat and
// reaction traffic feeds the scores but is never ranked itself.
func rankedKinds() []int {
	return []int{
		handlers.KindNote, handlers.KindLongForm,
		handlers.KindTrack, handlers.KindAlbum,
	}
}

// Publisher pushes a window's ranked entries to the cache. *cache.Cache
// satisfies this.
type Publisher interface {
	PublishRanking(ctx context.Context, period string, kind int, entries []cache.RankedEntry, ttl time.Duration) error
}

// Computer recomputes trending windows on a fixed interval
type Computer struct {
	store     *store.Store
	publisher Publisher
	cfg       *config.Trending
	logger    *ops.Logger

	// now is swappable for tests
	now func() time.Time
}

// New creates a trending computer
func New(st *store.Store, pub Publisher, cfg *config.Trending, logger *ops.Logger) *Computer {
	return &Computer{
		store:     st,
		publisher: pub,
		cfg:       cfg,
		logger:    logger.WithComponent("trending"),
		now:       time.Now,
	}
}

// Run recomputes all windows immediately and then on every interval tick
// until the context is cancelled.
func (c *Computer) Run(ctx context.Context) error {
	c.ComputeAll(ctx)

	ticker := time.NewTicker(c.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.ComputeAll(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ComputeAll recomputes every window. A failing window is logged and
// skipped; the remaining windows still refresh.
func (c *Computer) ComputeAll(ctx context.Context) {
	for _, w := range Windows() {
		start := c.now()
		candidates, kept, err := c.ComputeWindow(ctx, w)
		c.logger.LogTrendingCycle(w.Period, candidates, kept, c.now().Sub(start), err)
	}
}

// ComputeWindow scores one window's candidates, persists the top-N
// snapshot, and publishes it to the cache. Returns how many candidates
// were considered and how many made the snapshot.
func (c *Computer) ComputeWindow(ctx context.Context, w Window) (candidates, kept int, err error) {
	now := c.now()
	since := now.Add(-w.Span).Unix()

	events, err := c.store.SelectCandidates(ctx, rankedKinds(), since)
	if err != nil {
		return 0, 0, err
	}
	if len(events) == 0 {
		if err := c.store.ReplaceSnapshots(ctx, w.Period, nil); err != nil {
			return 0, 0, err
		}
		return 0, 0, c.publishWindow(ctx, w, nil)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	engagement, err := c.store.GetEngagementBatch(ctx, ids)
	if err != nil {
		return len(events), 0, err
	}

	snapshots := make([]store.Snapshot, 0, len(events))
	for _, e := range events {
		eng, ok := engagement[e.ID]
		if !ok {
			// No interactions at all; nothing to rank.
			continue
		}

		age := now.Sub(time.Unix(e.CreatedAt, 0))
		score := Score(c.cfg, eng, age)
		if score <= 0 {
			continue
		}

		snapshots = append(snapshots, store.Snapshot{
			Period:  w.Period,
			Kind:    e.Kind,
			EventID: e.ID,
			Score:   score,
		})
	}

	sort.Slice(snapshots, func(a, b int) bool {
		if snapshots[a].Score != snapshots[b].Score {
			return snapshots[a].Score > snapshots[b].Score
		}
		return snapshots[a].EventID < snapshots[b].EventID
	})
	if len(snapshots) > c.cfg.TopN {
		snapshots = snapshots[:c.cfg.TopN]
	}

	if err := c.store.ReplaceSnapshots(ctx, w.Period, snapshots); err != nil {
		return len(events), 0, err
	}
	return len(events), len(snapshots), c.publishWindow(ctx, w, snapshots)
}

// publishWindow pushes a window's snapshot to the cache, one ranked set
// per kind, expiring with the window itself.
func (c *Computer) publishWindow(ctx context.Context, w Window, snapshots []store.Snapshot) error {
	byKind := make(map[int][]cache.RankedEntry)
	for _, snap := range snapshots {
		byKind[snap.Kind] = append(byKind[snap.Kind], cache.RankedEntry{
			EventID: snap.EventID,
			Score:   snap.Score,
		})
	}

	for _, kind := range rankedKinds() {
		if err := c.publisher.PublishRanking(ctx, w.Period, kind, byKind[kind], w.Span); err != nil {
			return err
		}
	}
	return nil
}
