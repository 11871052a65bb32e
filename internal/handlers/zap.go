package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"

	"github.com/nbd-wtf/go-nostr"

	"github.com/reverbhq/reverb/internal/ops"
	"github.com/reverbhq/reverb/internal/store"
)

// ZapHandler accumulates zap receipts into per-event payment totals
type ZapHandler struct {
	store  *store.Store
	logger *ops.Logger
}

// NewZapHandler creates a zap handler
func NewZapHandler(st *store.Store, logger *ops.Logger) *ZapHandler {
	return &ZapHandler{store: st, logger: logger.WithComponent("zap")}
}

// Handle requires a target event tag. The amount comes best-effort from the
// zap request embedded in the description tag, falling back to the bolt11
// invoice; a malformed or missing amount counts the zap with zero sats.
func (h *ZapHandler) Handle(ctx context.Context, event *nostr.Event) error {
	targetID := firstTagValue(event, "e")
	if targetID == "" {
		return nil
	}

	sats := parseZapAmount(event)
	if sats == 0 {
		h.logger.Debug("zap amount missing or unparseable", "event_id", event.ID)
	}
	return h.store.AddZap(ctx, targetID, sats)
}

// parseZapAmount extracts the payment amount in sats from a zap receipt
func parseZapAmount(event *nostr.Event) int64 {
	if desc := firstTagValue(event, "description"); desc != "" {
		if sats, ok := amountFromZapRequest(desc); ok {
			return sats
		}
	}
	if invoice := firstTagValue(event, "bolt11"); invoice != "" {
		if sats, err := parseInvoiceAmount(invoice); err == nil {
			return sats
		}
	}
	return 0
}

// amountFromZapRequest reads the amount tag (millisats) out of the embedded
// zap request JSON.
func amountFromZapRequest(descJSON string) (int64, bool) {
	var request struct {
		Tags [][]string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(descJSON), &request); err != nil {
		return 0, false
	}

	for _, tag := range request.Tags {
		if len(tag) >= 2 && tag[0] == "amount" {
			msats, err := strconv.ParseInt(tag[1], 10, 64)
			if err != nil || msats < 0 {
				return 0, false
			}
			return msats / 1000, true
		}
	}
	return 0, false
}

var invoiceAmountRe = regexp.MustCompile(`^lnbc(\d+)([munp]?)`)

// parseInvoiceAmount extracts the amount in sats from a bolt11 invoice
// human-readable part.
func parseInvoiceAmount(invoice string) (int64, error) {
	matches := invoiceAmountRe.FindStringSubmatch(invoice)
	if len(matches) < 3 {
		return 0, errInvoiceAmount
	}

	amount, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, err
	}

	switch matches[2] {
	case "m": // millibitcoin = 100,000 sats
		return amount * 100000, nil
	case "u": // microbitcoin = 100 sats
		return amount * 100, nil
	case "n": // nanobitcoin = 0.1 sats
		return amount / 10, nil
	case "p": // picobitcoin = 0.0001 sats
		return amount / 10000, nil
	default: // whole bitcoin
		return amount * 100000000, nil
	}
}

var errInvoiceAmount = errors.New("could not parse invoice amount")
