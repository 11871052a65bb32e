package trending

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/cache"
	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/handlers"
	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/store"
)

type publishCall struct {
	period  string
	kind    int
	entries []cache.RankedEntry
	ttl     time.Duration
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (f *fakePublisher) PublishRanking(ctx context.Context, period string, kind int, entries []cache.RankedEntry, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{period: period, kind: kind, entries: entries, ttl: ttl})
	return nil
}

func (f *fakePublisher) find(period string, kind int) (publishCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].period == period && f.calls[i].kind == kind {
			return f.calls[i], true
		}
	}
	return publishCall{}, false
}

func setupComputer(t *testing.T) (*Computer, *store.Store, *fakePublisher, time.Time) {
	t.Helper()

	ctx := context.Background()
	st, err := store.New(ctx, &config.Storage{
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	pub := &fakePublisher{}
	logger := ops.NewLogger(&config.Logging{Level: "error"})

	c := New(st, pub, &cfg.Trending, logger)
	now := time.Unix(1700000000, 0).UTC()
	c.now = func() time.Time { return now }

	return c, st, pub, now
}

func seedNote(t *testing.T, st *store.Store, id string, createdAt int64, public bool) {
	t.Helper()
	event := &nostr.Event{
		ID:        id,
		PubKey:    "author-" + id,
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      handlers.KindNote,
		Tags:      nostr.Tags{},
	}
	if err := st.UpsertEvent(context.Background(), event, public); err != nil {
		t.Fatalf("UpsertEvent(%s) error = %v", id, err)
	}
}

func addReactions(t *testing.T, st *store.Store, id string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := st.IncrementReaction(context.Background(), id); err != nil {
			t.Fatalf("IncrementReaction(%s) error = %v", id, err)
		}
	}
}

func TestScoreFreshSingleReaction(t *testing.T) {
	cfg := config.Default()

	eng := &store.Engagement{ReactionCount: 1}
	if got := Score(&cfg.Trending, eng, 0); got != 300 {
		t.Errorf("Score() = %d, want 300", got)
	}
}

func TestScoreZeroSignals(t *testing.T) {
	cfg := config.Default()

	if got := Score(&cfg.Trending, &store.Engagement{}, time.Hour); got != 0 {
		t.Errorf("Score() = %d, want 0 for zero engagement", got)
	}
}

func TestScoreDecayMonotonic(t *testing.T) {
	cfg := config.Default()
	eng := &store.Engagement{ReactionCount: 10, CommentCount: 2}

	ages := []time.Duration{0, time.Hour, 6 * time.Hour, 24 * time.Hour, 72 * time.Hour}
	prev := Score(&cfg.Trending, eng, ages[0])
	for _, age := range ages[1:] {
		cur := Score(&cfg.Trending, eng, age)
		if cur >= prev {
			t.Errorf("Score at age %s = %d, expected below %d", age, cur, prev)
		}
		prev = cur
	}
}

func TestScoreFreshBeatsStale(t *testing.T) {
	cfg := config.Default()

	fresh := Score(&cfg.Trending, &store.Engagement{ReactionCount: 100}, time.Hour)
	stale := Score(&cfg.Trending, &store.Engagement{ReactionCount: 50}, 48*time.Hour)
	if fresh <= stale {
		t.Errorf("Expected fresh(100 reactions, 1h)=%d above stale(50 reactions, 48h)=%d", fresh, stale)
	}
}

func TestScoreZapTotalIsLogarithmic(t *testing.T) {
	cfg := config.Default()

	small := Score(&cfg.Trending, &store.Engagement{ZapCount: 1, ZapSatsTotal: 1000}, 0)
	whale := Score(&cfg.Trending, &store.Engagement{ZapCount: 1, ZapSatsTotal: 1000000}, 0)

	if whale <= small {
		t.Fatalf("Expected larger total to score higher: %d vs %d", whale, small)
	}
	// 1000x the sats must come nowhere near 1000x the score
	if whale > small*3 {
		t.Errorf("Expected log damping, got %d vs %d", whale, small)
	}
}

func TestComputeWindowRanksAndPublishes(t *testing.T) {
	c, st, pub, now := setupComputer(t)
	ctx := context.Background()

	seedNote(t, st, "hot", now.Unix()-600, true)
	seedNote(t, st, "warm", now.Unix()-600, true)
	seedNote(t, st, "silent", now.Unix()-600, true)
	addReactions(t, st, "hot", 10)
	addReactions(t, st, "warm", 2)

	candidates, kept, err := c.ComputeWindow(ctx, Window{Period: "1h", Span: time.Hour})
	if err != nil {
		t.Fatalf("ComputeWindow() error = %v", err)
	}
	if candidates != 3 || kept != 2 {
		t.Errorf("Expected 3 candidates / 2 kept, got %d/%d", candidates, kept)
	}

	snaps, err := st.GetSnapshots(ctx, "1h")
	if err != nil {
		t.Fatalf("GetSnapshots() error = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Expected 2 snapshot rows, got %d", len(snaps))
	}
	if snaps[0].EventID != "hot" || snaps[1].EventID != "warm" {
		t.Errorf("Expected hot above warm, got %s, %s", snaps[0].EventID, snaps[1].EventID)
	}

	call, ok := pub.find("1h", handlers.KindNote)
	if !ok {
		t.Fatal("Expected a published note ranking")
	}
	if len(call.entries) != 2 || call.entries[0].EventID != "hot" {
		t.Errorf("Expected published ranking led by hot, got %+v", call.entries)
	}
	if call.ttl != time.Hour {
		t.Errorf("Expected TTL equal to window span, got %s", call.ttl)
	}
}

func TestComputeWindowExcludesOutOfWindow(t *testing.T) {
	c, st, _, now := setupComputer(t)
	ctx := context.Background()

	seedNote(t, st, "recent", now.Unix()-1800, true)
	seedNote(t, st, "old", now.Unix()-7200, true)
	addReactions(t, st, "recent", 1)
	addReactions(t, st, "old", 50)

	if _, _, err := c.ComputeWindow(ctx, Window{Period: "1h", Span: time.Hour}); err != nil {
		t.Fatalf("ComputeWindow() error = %v", err)
	}

	snaps, err := st.GetSnapshots(ctx, "1h")
	if err != nil {
		t.Fatalf("GetSnapshots() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].EventID != "recent" {
		t.Errorf("Expected only the in-window event, got %+v", snaps)
	}
}

func TestComputeWindowExcludesPrivate(t *testing.T) {
	c, st, _, now := setupComputer(t)
	ctx := context.Background()

	seedNote(t, st, "private", now.Unix()-600, false)
	addReactions(t, st, "private", 20)

	if _, _, err := c.ComputeWindow(ctx, Window{Period: "1h", Span: time.Hour}); err != nil {
		t.Fatalf("ComputeWindow() error = %v", err)
	}

	snaps, err := st.GetSnapshots(ctx, "1h")
	if err != nil {
		t.Fatalf("GetSnapshots() error = %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("Expected private content unranked, got %+v", snaps)
	}
}

func TestComputeWindowTopN(t *testing.T) {
	c, st, _, now := setupComputer(t)
	c.cfg.TopN = 5
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("note-%02d", i)
		seedNote(t, st, id, now.Unix()-600, true)
		addReactions(t, st, id, i+1)
	}

	_, kept, err := c.ComputeWindow(ctx, Window{Period: "1h", Span: time.Hour})
	if err != nil {
		t.Fatalf("ComputeWindow() error = %v", err)
	}
	if kept != 5 {
		t.Errorf("Expected top 5 kept, got %d", kept)
	}

	snaps, err := st.GetSnapshots(ctx, "1h")
	if err != nil {
		t.Fatalf("GetSnapshots() error = %v", err)
	}
	if snaps[0].EventID != "note-19" {
		t.Errorf("Expected most reacted note first, got %s", snaps[0].EventID)
	}
}

func TestComputeWindowReplacesPreviousSnapshot(t *testing.T) {
	c, st, _, now := setupComputer(t)
	ctx := context.Background()

	seedNote(t, st, "first", now.Unix()-600, true)
	addReactions(t, st, "first", 3)
	if _, _, err := c.ComputeWindow(ctx, Window{Period: "1h", Span: time.Hour}); err != nil {
		t.Fatalf("ComputeWindow() error = %v", err)
	}

	// The first event ages out; a newer one takes its place
	c.now = func() time.Time { return now.Add(2 * time.Hour) }
	seedNote(t, st, "second", now.Add(100*time.Minute).Unix(), true)
	addReactions(t, st, "second", 1)
	if _, _, err := c.ComputeWindow(ctx, Window{Period: "1h", Span: time.Hour}); err != nil {
		t.Fatalf("ComputeWindow() error = %v", err)
	}

	snaps, err := st.GetSnapshots(ctx, "1h")
	if err != nil {
		t.Fatalf("GetSnapshots() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].EventID != "second" {
		t.Errorf("Expected old snapshot replaced, got %+v", snaps)
	}
}

func TestComputeAllCoversEveryWindow(t *testing.T) {
	c, st, pub, now := setupComputer(t)
	ctx := context.Background()

	seedNote(t, st, "note1", now.Unix()-600, true)
	addReactions(t, st, "note1", 1)

	c.ComputeAll(ctx)

	for _, w := range Windows() {
		call, ok := pub.find(w.Period, handlers.KindNote)
		if !ok {
			t.Errorf("Expected a publish for window %s", w.Period)
			continue
		}
		if call.ttl != w.Span {
			t.Errorf("Window %s: expected TTL %s, got %s", w.Period, w.Span, call.ttl)
		}
	}
}
