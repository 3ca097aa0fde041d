package sheets

import (
	"context"
	"errors"
	"time"

	"invoicedesk/internal/events"
)

var ErrEmptyInvoiceID = errors.New("ledger row without invoice id")

// LedgerRow is the one-line summary kept per invoice.
type LedgerRow struct {
	InvoiceID     string
	InvoiceNumber string
	InvoiceDate   string
	Vendor        string
	Year          int
	NetAmount     float64
	LastAction    string
	UpdatedBy     string
	UpdatedAt     time.Time
}

// RowFromEvent maps a change event to the row it should leave behind.
func RowFromEvent(e events.InvoiceChanged) LedgerRow {
	return LedgerRow{
		InvoiceID:     e.InvoiceID,
		InvoiceNumber: e.InvoiceNumber,
		InvoiceDate:   e.InvoiceDate,
		Vendor:        e.VendorName,
		Year:          e.Year,
		NetAmount:     e.NetAmount,
		LastAction:    string(e.Action),
		UpdatedBy:     e.Username,
		UpdatedAt:     e.OccurredAt,
	}
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		// Upsert writes row, replacing any row with the same invoice id.
		Upsert(ctx context.Context, row LedgerRow) (rowRef string, err error)
		// Remove deletes the row of invoiceID and reports whether one existed.
		Remove(ctx context.Context, invoiceID string) (bool, error)
	}

	LedgerReader interface {
		List(ctx context.Context) ([]LedgerRow, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)
