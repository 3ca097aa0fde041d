package storage

import (
	"context"
	"fmt"
	"time"

	"invoicedesk/internal/events"
)

const (
	eventPending   = "pending"
	eventPublished = "published"
	eventFailed    = "failed"
)

// Outbox records invoice events until they reach the broker. Writing to the
// outbox never depends on the broker being up.
type Outbox struct {
	db *DB
}

func NewOutbox(db *DB) *Outbox {
	return &Outbox{db: db}
}

// PendingEvent is one outbox row waiting to be published.
type PendingEvent struct {
	ID       int64
	Event    events.InvoiceChanged
	Attempts int
}

// OutboxStats counts rows per status.
type OutboxStats struct {
	Pending   int
	Published int
	Failed    int
}

// Publish implements events.Publisher by enqueueing e.
func (o *Outbox) Publish(ctx context.Context, e events.InvoiceChanged) error {
	if err := e.Validate(); err != nil {
		return err
	}
	payload, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = o.db.db.ExecContext(ctx, `
		INSERT INTO invoice_events (event_id, invoice_id, action, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EventID, e.InvoiceID, string(e.Action), string(payload), eventPending, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}
	return nil
}

// Pending returns up to limit pending events, oldest first.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]PendingEvent, error) {
	rows, err := o.db.db.QueryContext(ctx, `
		SELECT id, payload, attempts FROM invoice_events
		WHERE status = ? ORDER BY id LIMIT ?`, eventPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var out []PendingEvent
	for rows.Next() {
		var (
			p       PendingEvent
			payload string
		)
		if err := rows.Scan(&p.ID, &payload, &p.Attempts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e, err := events.FromJSON([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", p.ID, err)
		}
		p.Event = e
		out = append(out, p)
	}
	return out, rows.Err()
}

func (o *Outbox) MarkPublished(ctx context.Context, id int64) error {
	_, err := o.db.db.ExecContext(ctx, `
		UPDATE invoice_events SET status = ?, published_at = ?, last_error = NULL
		WHERE id = ?`, eventPublished, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("mark event %d published: %w", id, err)
	}
	return nil
}

// MarkAttemptFailed records a failed publish. After maxAttempts the event
// is parked as failed until RetryFailed.
func (o *Outbox) MarkAttemptFailed(ctx context.Context, id int64, cause error, maxAttempts int) error {
	_, err := o.db.db.ExecContext(ctx, `
		UPDATE invoice_events
		SET attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`, cause.Error(), maxAttempts, eventFailed, id)
	if err != nil {
		return fmt.Errorf("mark event %d failed: %w", id, err)
	}
	return nil
}

// RetryFailed moves failed events back to pending.
func (o *Outbox) RetryFailed(ctx context.Context) (int, error) {
	res, err := o.db.db.ExecContext(ctx, `
		UPDATE invoice_events SET status = ?, attempts = 0 WHERE status = ?`, eventPending, eventFailed)
	if err != nil {
		return 0, fmt.Errorf("retry failed events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Cleanup deletes published events older than cutoff.
func (o *Outbox) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := o.db.db.ExecContext(ctx, `
		DELETE FROM invoice_events WHERE status = ? AND published_at < ?`, eventPublished, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (o *Outbox) Stats(ctx context.Context) (OutboxStats, error) {
	rows, err := o.db.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM invoice_events GROUP BY status`)
	if err != nil {
		return OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	defer rows.Close()

	var st OutboxStats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return OutboxStats{}, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case eventPending:
			st.Pending = n
		case eventPublished:
			st.Published = n
		case eventFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}
