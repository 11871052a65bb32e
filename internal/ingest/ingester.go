// Package ingest runs the relay consumption loop: subscribe from the
// persisted watermark, verify and deduplicate each event, persist it,
// dispatch it to its kind handler, and advance the watermark.
//
// Delivery is at-least-once. A crash between persisting an event and
// advancing the watermark replays that event on restart, so everything
// downstream of this loop is idempotent.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/config"
	"github.com/reverbhq/reverb/internal/dedup"
	"github.com/reverbhq/reverb/internal/handlers"
	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/relay"
	"github.com/reverbhq/reverb/internal/store"
	"github.com/reverbhq/reverb/internal/verify"
)

// State is the connection state of the ingestion loop
type State int32

// Connection states
const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed // subscription open, replaying stored events
	StateReceiving  // past EOSE, streaming live events
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Subscriber opens a relay subscription. *relay.Client satisfies this.
type Subscriber interface {
	Subscribe(ctx context.Context, kinds []int, since int64) (<-chan relay.Message, error)
}

// Dispatcher routes an event to its kind handler. *handlers.Manager
// satisfies this.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *nostr.Event) error
}

// Ingester drives the subscribe/verify/dedup/persist/dispatch loop
type Ingester struct {
	sub        Subscriber
	store      *store.Store
	dedup      *dedup.Deduplicator
	dispatcher Dispatcher
	cfg        *config.Config
	logger     *ops.Logger

	state     atomic.Int32
	processed atomic.Uint64
	dropped   atomic.Uint64
}

// New creates an ingester
func New(sub Subscriber, st *store.Store, dd *dedup.Deduplicator, d Dispatcher, cfg *config.Config, logger *ops.Logger) *Ingester {
	return &Ingester{
		sub:        sub,
		store:      st,
		dedup:      dd,
		dispatcher: d,
		cfg:        cfg,
		logger:     logger.WithComponent("ingest"),
	}
}

// State returns the current connection state
func (i *Ingester) State() State {
	return State(i.state.Load())
}

// Processed returns the number of events accepted into the pipeline
func (i *Ingester) Processed() uint64 {
	return i.processed.Load()
}

// Dropped returns the number of events rejected by verification or dedup
func (i *Ingester) Dropped() uint64 {
	return i.dropped.Load()
}

// Run consumes the relay until the context is cancelled. Every disconnect
// or failed connection attempt is followed by a fixed reconnect delay and
// a fresh subscription from the persisted watermark.
func (i *Ingester) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			i.state.Store(int32(StateDisconnected))
			return err
		}

		i.state.Store(int32(StateConnecting))

		since, err := i.store.GetWatermark(ctx, i.cfg.Ingest.WatermarkKey)
		if err != nil {
			i.logger.LogStoreError("get_watermark", err)
			if !i.waitReconnect(ctx) {
				return ctx.Err()
			}
			continue
		}

		messages, err := i.sub.Subscribe(ctx, handlers.AllowedKinds(), since)
		if err != nil {
			i.state.Store(int32(StateDisconnected))
			i.logger.LogRelayConnection(i.cfg.Relay.URL, false, err)
			if !i.waitReconnect(ctx) {
				return ctx.Err()
			}
			continue
		}

		i.state.Store(int32(StateSubscribed))
		i.logger.LogRelayConnection(i.cfg.Relay.URL, true, nil)

		i.consume(ctx, messages)

		i.state.Store(int32(StateDisconnected))
		i.logger.LogRelayConnection(i.cfg.Relay.URL, false, nil)

		if !i.waitReconnect(ctx) {
			return ctx.Err()
		}
	}
}

// consume drains one subscription until the channel closes
func (i *Ingester) consume(ctx context.Context, messages <-chan relay.Message) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.EOSE {
				// Backlog replayed; the subscription stays open for
				// live events.
				i.state.Store(int32(StateReceiving))
				continue
			}
			if msg.Event == nil {
				continue
			}
			if err := i.process(ctx, msg.Event); err != nil {
				i.logger.LogStoreError("process_event", err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// process runs one event through verify, dedup, persist, and dispatch.
// A returned error means the event was not persisted and the watermark did
// not move, so a later replay delivers it again. Handler failures are
// logged but never block the watermark.
func (i *Ingester) process(ctx context.Context, event *nostr.Event) error {
	// Verification failures are expected noise on a public stream and are
	// dropped without logging.
	if !verify.Verify(event) {
		i.dropped.Add(1)
		return nil
	}

	if i.dedup.IsDuplicate(event.ID) {
		i.dropped.Add(1)
		return nil
	}

	if err := i.store.UpsertEvent(ctx, event, handlers.IsPublic(event)); err != nil {
		return err
	}

	i.dedup.MarkSeen(event.ID)

	if err := i.dispatcher.Dispatch(ctx, event); err != nil {
		i.logger.LogHandlerError(event.Kind, event.ID, err)
	}

	if err := i.store.AdvanceWatermark(ctx, i.cfg.Ingest.WatermarkKey, int64(event.CreatedAt)); err != nil {
		return err
	}

	i.processed.Add(1)
	if i.processed.Load()%1000 == 0 {
		i.logger.LogIngestProgress(i.processed.Load(), i.dropped.Load(), int64(event.CreatedAt))
	}
	return nil
}

// waitReconnect sleeps the configured reconnect delay. Returns false when
// the context was cancelled while waiting.
func (i *Ingester) waitReconnect(ctx context.Context) bool {
	timer := time.NewTimer(i.cfg.Relay.ReconnectDelay())
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
