package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/dedup"
	"github.com/reverbhq/reverb/internal/handlers"
	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/relay"
	"github.com/reverbhq/reverb/internal/search"
	"github.com/reverbhq/reverb/internal/store"
)

// fakeSubscriber replays scripted message batches, one batch per Subscribe
// call. After the last batch it blocks until the context is cancelled.
type fakeSubscriber struct {
	mu      sync.Mutex
	batches [][]relay.Message
	errs    []error
	calls   int
	sinces  []int64
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, kinds []int, since int64) (<-chan relay.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++
	f.sinces = append(f.sinces, since)

	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}

	ch := make(chan relay.Message, 100)
	if call < len(f.batches) {
		for _, msg := range f.batches[call] {
			ch <- msg
		}
		close(ch)
	} else {
		// No more scripted batches; hold the subscription open.
		go func() {
			<-ctx.Done()
			close(ch)
		}()
	}
	return ch, nil
}

func (f *fakeSubscriber) subscribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func signedEvent(t *testing.T, sk string, kind int, createdAt int64, content string, tags nostr.Tags) *nostr.Event {
	t.Helper()

	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("Failed to derive public key: %v", err)
	}

	event := &nostr.Event{
		PubKey:    pk,
		CreatedAt: nostr.Timestamp(createdAt),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	if event.Tags == nil {
		event.Tags = nostr.Tags{}
	}
	if err := event.Sign(sk); err != nil {
		t.Fatalf("Failed to sign event: %v", err)
	}
	return event
}

func setupIngester(t *testing.T, sub Subscriber) (*Ingester, *store.Store) {
	t.Helper()

	cfg := config.Default()
	cfg.Relay.URL = "wss://relay.test"
	cfg.Relay.ReconnectDelaySecs = 0

	ctx := context.Background()
	st, err := store.New(ctx, &config.Storage{
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	idx, err := search.New(ctx, st.DB())
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}

	dd, err := dedup.New(dedup.Options{
		BloomCapacity: 1000,
		BloomFPRate:   0.01,
		ExactCapacity: 1000,
	})
	if err != nil {
		t.Fatalf("Failed to create deduplicator: %v", err)
	}

	logger := ops.NewLogger(&config.Logging{Level: "error"})
	mgr := handlers.NewManager(st, idx, logger)
	return New(sub, st, dd, mgr, cfg, logger), st
}

// runUntil runs the ingester until cond holds or the deadline passes
func runUntil(t *testing.T, ing *Ingester, cond func() bool) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ing.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("Timed out waiting for ingester")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestIngesterPersistsVerifiedEvents(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	event := signedEvent(t, sk, handlers.KindNote, 1700000000, "hello", nil)

	sub := &fakeSubscriber{batches: [][]relay.Message{{
		{Event: event},
		{EOSE: true},
	}}}
	ing, st := setupIngester(t, sub)

	runUntil(t, ing, func() bool { return ing.Processed() >= 1 })

	ctx := context.Background()
	row, err := st.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if row == nil {
		t.Fatal("Expected event persisted")
	}

	watermark, err := st.GetWatermark(ctx, "relay_watermark")
	if err != nil {
		t.Fatalf("GetWatermark() error = %v", err)
	}
	if watermark != 1700000000 {
		t.Errorf("Expected watermark 1700000000, got %d", watermark)
	}
}

func TestIngesterDropsForgedSignature(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	event := signedEvent(t, sk, handlers.KindNote, 1700000000, "hello", nil)
	event.Content = "tampered"

	sub := &fakeSubscriber{batches: [][]relay.Message{{
		{Event: event},
	}}}
	ing, st := setupIngester(t, sub)

	runUntil(t, ing, func() bool { return ing.Dropped() >= 1 })

	row, err := st.GetEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if row != nil {
		t.Error("Expected tampered event rejected")
	}
	if ing.Processed() != 0 {
		t.Errorf("Expected nothing processed, got %d", ing.Processed())
	}
}

func TestIngesterReplayedReactionCountsOnce(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	reaction := signedEvent(t, sk, handlers.KindReaction, 1700000000, "+",
		nostr.Tags{{"e", "target1"}, {"h", "space1"}})

	// Same signed reaction delivered three times in one stream
	sub := &fakeSubscriber{batches: [][]relay.Message{{
		{Event: reaction},
		{Event: reaction},
		{Event: reaction},
	}}}
	ing, st := setupIngester(t, sub)

	runUntil(t, ing, func() bool {
		return ing.Processed()+ing.Dropped() >= 3
	})

	eng, err := st.GetEngagement(context.Background(), "target1")
	if err != nil {
		t.Fatalf("GetEngagement() error = %v", err)
	}
	if eng.ReactionCount != 1 {
		t.Errorf("Expected replayed reaction counted once, got %d", eng.ReactionCount)
	}
	if ing.Processed() != 1 || ing.Dropped() != 2 {
		t.Errorf("Expected 1 processed / 2 dropped, got %d/%d", ing.Processed(), ing.Dropped())
	}
}

func TestIngesterChatDayStats(t *testing.T) {
	sk := nostr.GeneratePrivateKey()

	var batch []relay.Message
	base := int64(1700000000)
	for i := 0; i < 10; i++ {
		event := signedEvent(t, sk, handlers.KindChat, base+int64(i), "msg",
			nostr.Tags{{"h", "space1"}})
		batch = append(batch, relay.Message{Event: event})
	}

	sub := &fakeSubscriber{batches: [][]relay.Message{batch}}
	ing, st := setupIngester(t, sub)

	runUntil(t, ing, func() bool { return ing.Processed() >= 10 })

	stats, err := st.GetSpaceDailyStats(context.Background(), "space1", store.Day(base))
	if err != nil {
		t.Fatalf("GetSpaceDailyStats() error = %v", err)
	}
	if stats.Messages != 10 || stats.UniqueAuthors != 1 {
		t.Errorf("Expected 10 messages / 1 author, got %d/%d", stats.Messages, stats.UniqueAuthors)
	}
}

func TestIngesterReconnectsAfterFailure(t *testing.T) {
	sk := nostr.GeneratePrivateKey()
	event := signedEvent(t, sk, handlers.KindNote, 1700000000, "after reconnect", nil)

	sub := &fakeSubscriber{
		errs: []error{errors.New("connection refused")},
		batches: [][]relay.Message{
			nil, // first call errors before the batch is consulted
			{{Event: event}},
		},
	}
	ing, _ := setupIngester(t, sub)

	runUntil(t, ing, func() bool { return ing.Processed() >= 1 })

	if sub.subscribeCalls() < 2 {
		t.Errorf("Expected a reconnect attempt, got %d subscribe calls", sub.subscribeCalls())
	}
}

func TestIngesterResumesFromWatermark(t *testing.T) {
	sub := &fakeSubscriber{}
	ing, st := setupIngester(t, sub)

	ctx := context.Background()
	if err := st.AdvanceWatermark(ctx, "relay_watermark", 1699999999); err != nil {
		t.Fatalf("AdvanceWatermark() error = %v", err)
	}

	runUntil(t, ing, func() bool { return sub.subscribeCalls() >= 1 })

	sub.mu.Lock()
	since := sub.sinces[0]
	sub.mu.Unlock()
	if since != 1699999999 {
		t.Errorf("Expected subscription since watermark, got %d", since)
	}
}

func TestIngesterStateTransitions(t *testing.T) {
	sub := &fakeSubscriber{batches: [][]relay.Message{{
		{EOSE: true},
	}}}
	ing, _ := setupIngester(t, sub)

	if ing.State() != StateDisconnected {
		t.Errorf("Expected initial state disconnected, got %s", ing.State())
	}

	// The scripted batch closes immediately after EOSE, so the loop cycles
	// through receiving back to a fresh subscription.
	runUntil(t, ing, func() bool { return sub.subscribeCalls() >= 2 })

	if ing.State() != StateDisconnected {
		t.Errorf("Expected disconnected after shutdown, got %s", ing.State())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateSubscribed, "subscribed"},
		{StateReceiving, "receiving"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
