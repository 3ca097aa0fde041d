package events

import (
	"testing"

	"invoicedesk/internal/core"
)

func TestNewInvoiceChangedDerivesYear(t *testing.T) {
	inv := core.Invoice{
		ID:            "abc",
		InvoiceNumber: core.StringPtr("INV-1"),
		InvoiceDate:   core.StringPtr("2023-07-14"),
		VendorName:    core.StringPtr("Acme"),
		Totals:        core.InvoiceTotals{NetAmount: core.FloatPtr(118)},
	}
	e := NewInvoiceChanged(ActionCreated, inv, "alice")
	if e.Year != 2023 || e.NetAmount != 118 || e.VendorName != "Acme" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.EventID == "" || e.OccurredAt.IsZero() {
		t.Fatalf("event id and time must be set")
	}

	inv.Year = 2024
	if got := NewInvoiceChanged(ActionUpdated, inv, "").Year; got != 2024 {
		t.Fatalf("explicit year should win, got %d", got)
	}
}

func TestJSONRoundTripValidates(t *testing.T) {
	e := NewInvoiceChanged(ActionDeleted, core.Invoice{ID: "x"}, "")
	b, err := e.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := FromJSON(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.EventID != e.EventID || back.Action != ActionDeleted {
		t.Fatalf("round trip mismatch: %+v", back)
	}

	if _, err := FromJSON([]byte(`{"event_id":"1","action":"exploded","invoice_id":"x"}`)); err == nil {
		t.Fatalf("expected invalid action error")
	}
	if _, err := FromJSON([]byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
