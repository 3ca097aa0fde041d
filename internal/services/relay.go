package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invoicedesk/internal/events"
	"invoicedesk/internal/storage"
)

// EventOutbox is the storage side of the relay.
type EventOutbox interface {
	Pending(ctx context.Context, limit int) ([]storage.PendingEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkAttemptFailed(ctx context.Context, id int64, cause error, maxAttempts int) error
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
}

// RelayConfig holds configuration for the outbox relay
type RelayConfig struct {
	// PollInterval is how often to check for pending events (default: 5s)
	PollInterval time.Duration

	// BatchSize is the max number of events to publish per poll cycle (default: 20)
	BatchSize int

	// MaxAttempts is how many publish attempts an event gets before it is parked (default: 5)
	MaxAttempts int

	// CleanupInterval is how often to delete published events (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old published events must be before deletion (default: 24h)
	CleanupAge time.Duration

	// OnPublished, when set, is told how many events each batch published.
	OnPublished func(n int)
}

// DefaultRelayConfig returns sensible defaults
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       20,
		MaxAttempts:     5,
		CleanupInterval: time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// Relay moves events from the SQLite outbox to the broker.
type Relay struct {
	outbox    EventOutbox
	publisher events.Publisher
	config    RelayConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRelay(outbox EventOutbox, publisher events.Publisher, config RelayConfig) *Relay {
	def := DefaultRelayConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.CleanupAge <= 0 {
		config.CleanupAge = def.CleanupAge
	}
	return &Relay{outbox: outbox, publisher: publisher, config: config}
}

// Start begins the relay loop. Returns an error if already running.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	slog.InfoContext(ctx, "Event relay started",
		"poll_interval", r.config.PollInterval,
		"batch_size", r.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for it, bounded by ctx.
func (r *Relay) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Event relay stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Event relay stop timed out")
		return ctx.Err()
	}
}

func (r *Relay) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Relay) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	pollTicker := time.NewTicker(r.config.PollInterval)
	defer pollTicker.Stop()
	cleanupTicker := time.NewTicker(r.config.CleanupInterval)
	defer cleanupTicker.Stop()

	r.ProcessBatch(ctx)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			r.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			r.cleanup(ctx)
		}
	}
}

// ProcessBatch publishes one batch of pending events and returns how many
// were published. Events are sent in outbox order; the batch stops at the
// first failure so later events do not overtake an earlier one.
func (r *Relay) ProcessBatch(ctx context.Context) int {
	pending, err := r.outbox.Pending(ctx, r.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read outbox", "error", err)
		return 0
	}

	published := 0
	if r.config.OnPublished != nil {
		defer func() { r.config.OnPublished(published) }()
	}
	for _, p := range pending {
		if ctx.Err() != nil {
			return published
		}
		if err := r.publisher.Publish(ctx, p.Event); err != nil {
			slog.WarnContext(ctx, "Event publish failed",
				"outbox_id", p.ID,
				"event_id", p.Event.EventID,
				"attempt", p.Attempts+1,
				"error", err)
			if merr := r.outbox.MarkAttemptFailed(ctx, p.ID, err, r.config.MaxAttempts); merr != nil {
				slog.ErrorContext(ctx, "Failed to record publish failure", "outbox_id", p.ID, "error", merr)
			}
			if p.Attempts+1 >= r.config.MaxAttempts {
				slog.ErrorContext(ctx, "Event parked after max attempts",
					"event_id", p.Event.EventID,
					"invoice_id", p.Event.InvoiceID)
			}
			return published
		}
		if err := r.outbox.MarkPublished(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark event published", "outbox_id", p.ID, "error", err)
			return published
		}
		published++
	}
	if published > 0 {
		slog.DebugContext(ctx, "Outbox batch relayed", "count", published)
	}
	return published
}

func (r *Relay) cleanup(ctx context.Context) {
	n, err := r.outbox.Cleanup(ctx, time.Now().Add(-r.config.CleanupAge))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clean up outbox", "error", err)
		return
	}
	if n > 0 {
		slog.DebugContext(ctx, "Published events cleaned up", "count", n)
	}
}
