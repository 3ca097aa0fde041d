// Package events describes invoice change notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"invoicedesk/internal/core"
)

// Action is what happened to an invoice.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// InvoiceChanged is published after a successful create, update or delete.
// It carries the summary a ledger needs, not the full invoice.
type InvoiceChanged struct {
	EventID       string    `json:"event_id"`
	Action        Action    `json:"action"`
	InvoiceID     string    `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	InvoiceDate   string    `json:"invoice_date,omitempty"`
	VendorName    string    `json:"vendor_name,omitempty"`
	Year          int       `json:"year,omitempty"`
	NetAmount     float64   `json:"net_amount"`
	Username      string    `json:"username,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewInvoiceChanged builds an event for inv. The year falls back to the
// invoice date when the API did not set one.
func NewInvoiceChanged(action Action, inv core.Invoice, username string) InvoiceChanged {
	year := inv.Year
	if year == 0 {
		if t, ok := core.ParseInvoiceDate(core.StringValue(inv.InvoiceDate)); ok {
			year = t.Year()
		}
	}
	return InvoiceChanged{
		EventID:       uuid.NewString(),
		Action:        action,
		InvoiceID:     inv.ID,
		InvoiceNumber: core.StringValue(inv.InvoiceNumber),
		InvoiceDate:   core.StringValue(inv.InvoiceDate),
		VendorName:    core.StringValue(inv.VendorName),
		Year:          year,
		NetAmount:     inv.Net(),
		Username:      username,
		OccurredAt:    time.Now().UTC(),
	}
}

// Validate checks the fields every consumer relies on.
func (e InvoiceChanged) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event without id")
	}
	if e.InvoiceID == "" {
		return fmt.Errorf("event %s: missing invoice id", e.EventID)
	}
	if !e.Action.Valid() {
		return fmt.Errorf("event %s: unknown action %q", e.EventID, e.Action)
	}
	return nil
}

func (e InvoiceChanged) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (InvoiceChanged, error) {
	var e InvoiceChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return InvoiceChanged{}, err
	}
	return e, e.Validate()
}

// Publisher hands events to whatever transports them.
type Publisher interface {
	Publish(ctx context.Context, e InvoiceChanged) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, InvoiceChanged) error { return nil }
