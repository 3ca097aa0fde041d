package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invoicedesk/internal/cache"
	"invoicedesk/internal/events"
	"invoicedesk/internal/sheets"
)

const seenEventsSize = 10000

// LedgerWorker applies invoice change events to a ledger.
type LedgerWorker struct {
	ledger sheets.LedgerWriter

	// seen drops redeliveries of an event already applied.
	seen *cache.LRUCache[struct{}]

	mu sync.Mutex
	// latest holds the newest event time applied per invoice so an event
	// that arrives late cannot undo a newer one.
	latest map[string]time.Time
}

func NewLedgerWorker(ledger sheets.LedgerWriter) *LedgerWorker {
	return &LedgerWorker{
		ledger: ledger,
		seen:   cache.NewLRUCache[struct{}](seenEventsSize, 24*time.Hour),
		latest: make(map[string]time.Time),
	}
}

// HandleInvoiceChanged processes a single event. A returned error makes the
// consumer requeue the message.
func (w *LedgerWorker) HandleInvoiceChanged(ctx context.Context, e events.InvoiceChanged) error {
	if _, dup := w.seen.Get(e.EventID); dup {
		slog.DebugContext(ctx, "Duplicate event skipped", "event_id", e.EventID)
		return nil
	}
	if w.isStale(e) {
		slog.InfoContext(ctx, "Stale event skipped",
			"event_id", e.EventID,
			"invoice_id", e.InvoiceID,
			"occurred_at", e.OccurredAt)
		w.seen.Set(e.EventID, struct{}{})
		return nil
	}

	slog.InfoContext(ctx, "Processing invoice event",
		"event_id", e.EventID,
		"action", e.Action,
		"invoice_id", e.InvoiceID)

	switch e.Action {
	case events.ActionDeleted:
		removed, err := w.ledger.Remove(ctx, e.InvoiceID)
		if err != nil {
			return fmt.Errorf("remove ledger row: %w", err)
		}
		if !removed {
			slog.WarnContext(ctx, "No ledger row for deleted invoice", "invoice_id", e.InvoiceID)
		}
	case events.ActionCreated, events.ActionUpdated:
		ref, err := w.ledger.Upsert(ctx, sheets.RowFromEvent(e))
		if err != nil {
			return fmt.Errorf("upsert ledger row: %w", err)
		}
		slog.InfoContext(ctx, "Ledger row written",
			"invoice_id", e.InvoiceID,
			"ledger_ref", ref,
			"net_amount", e.NetAmount)
	default:
		return fmt.Errorf("unknown action %q", e.Action)
	}

	w.markApplied(e)
	return nil
}

func (w *LedgerWorker) isStale(e events.InvoiceChanged) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.latest[e.InvoiceID]
	return ok && e.OccurredAt.Before(last)
}

func (w *LedgerWorker) markApplied(e events.InvoiceChanged) {
	w.seen.Set(e.EventID, struct{}{})
	w.mu.Lock()
	defer w.mu.Unlock()
	if e.OccurredAt.After(w.latest[e.InvoiceID]) {
		w.latest[e.InvoiceID] = e.OccurredAt
	}
}
