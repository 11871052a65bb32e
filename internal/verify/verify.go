// Package verify authenticates relay events before they enter the pipeline.
//
// An event is only trusted when its id matches the canonical serialization
// hash and its signature checks out against the author pubkey. Everything
// else in the pipeline assumes events passed through here first.
package verify

import (
	"github.com/nbd-wtf/go-nostr"
)

// Verify reports whether the event's id and signature are authentic.
//
// The id is recomputed from (pubkey, created_at, kind, tags, content) and
// compared first; signature verification is skipped on mismatch. Malformed
// fields (bad hex, truncated sig) count as verification failure, never as
// an error.
func Verify(event *nostr.Event) (valid bool) {
	if event == nil {
		return false
	}

	// Malformed pubkey/sig hex can panic inside the crypto layer.
	defer func() {
		if recover() != nil {
			valid = false
		}
	}()

	if event.GetID() != event.ID {
		return false
	}

	ok, err := event.CheckSignature()
	if err != nil {
		return false
	}
	return ok
}
