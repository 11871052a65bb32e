// Package relay speaks the upstream relay's subscription protocol:
// connect, subscribe with kinds+since, stream events and the
// end-of-stored-events marker, close.
package relay

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/config"
)

// Message is one message received on a subscription. Exactly one of Event
// or EOSE is meaningful.
type Message struct {
	Event *nostr.Event
	EOSE  bool
}

// Client opens subscriptions against the configured relay
type Client struct {
	cfg *config.Relay
}

// New creates a relay client
func New(cfg *config.Relay) *Client {
	return &Client{cfg: cfg}
}

// Subscribe connects to the relay and opens one subscription scoped to the
// given kinds and since cursor. The returned channel is closed when the
// transport closes or the context is cancelled; the caller treats a closed
// channel as a disconnect and decides whether to reconnect.
func (c *Client) Subscribe(ctx context.Context, kinds []int, since int64) (<-chan Message, error) {
	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout())
	defer cancel()

	conn, err := nostr.RelayConnect(connectCtx, c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay %s: %w", c.cfg.URL, err)
	}

	ts := nostr.Timestamp(since)
	filter := nostr.Filter{
		Kinds: kinds,
		Since: &ts,
	}

	sub, err := conn.Subscribe(ctx, nostr.Filters{filter})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	messages := make(chan Message, 100)
	go func() {
		defer close(messages)
		defer conn.Close()

		eose := sub.EndOfStoredEvents
		for {
			select {
			case event, ok := <-sub.Events:
				if !ok {
					// Transport closed or subscription ended.
					return
				}
				select {
				case messages <- Message{Event: event}:
				case <-ctx.Done():
					sub.Unsub()
					return
				}

			case <-eose:
				// Fires once; the subscription stays open for live events.
				eose = nil
				select {
				case messages <- Message{EOSE: true}:
				case <-ctx.Done():
					sub.Unsub()
					return
				}

			case <-ctx.Done():
				sub.Unsub()
				return
			}
		}
	}()

	return messages, nil
}
