package core

import (
	"encoding/json"
	"testing"
)

func TestNewEmptyInvoice(t *testing.T) {
	inv := NewEmptyInvoice()
	if len(inv.Items) != 1 {
		t.Fatalf("expected one item row, got %d", len(inv.Items))
	}
	if inv.ID != "" || inv.InvoiceNumber != nil || inv.Totals.NetAmount != nil {
		t.Fatalf("expected blank invoice, got %+v", inv)
	}
}

func TestInvoiceCloneIsDeep(t *testing.T) {
	orig := Invoice{
		InvoiceNumber: StringPtr("INV-1"),
		Items: []InvoiceItem{
			{ItemName: StringPtr("Rice"), Quantity: FloatPtr(2)},
		},
		Totals: InvoiceTotals{NetAmount: FloatPtr(100)},
	}
	cp := orig.Clone()

	*cp.InvoiceNumber = "changed"
	*cp.Items[0].ItemName = "Wheat"
	*cp.Items[0].Quantity = 9
	*cp.Totals.NetAmount = 1
	cp.Items = append(cp.Items, NewEmptyItem())

	if *orig.InvoiceNumber != "INV-1" {
		t.Fatalf("invoice number aliased")
	}
	if *orig.Items[0].ItemName != "Rice" || *orig.Items[0].Quantity != 2 {
		t.Fatalf("item aliased: %+v", orig.Items[0])
	}
	if *orig.Totals.NetAmount != 100 {
		t.Fatalf("totals aliased")
	}
	if len(orig.Items) != 1 {
		t.Fatalf("items slice aliased")
	}
}

func TestInvoiceJSONNulls(t *testing.T) {
	raw := `{"_id":"abc","invoice_number":null,"vendor_name":"Acme",
		"items":[{"item_name":"Bolt","quantity":null,"amount":12.5}],
		"totals":{"net_amount":12.5},"year":2024}`

	var inv Invoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if inv.ID != "abc" || inv.InvoiceNumber != nil || StringValue(inv.VendorName) != "Acme" {
		t.Fatalf("unexpected header: %+v", inv)
	}
	if inv.Items[0].Quantity != nil || Value(inv.Items[0].Amount) != 12.5 {
		t.Fatalf("unexpected item: %+v", inv.Items[0])
	}

	out, err := json.Marshal(inv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	_ = json.Unmarshal(out, &back)
	if v, ok := back["invoice_number"]; !ok || v != nil {
		t.Fatalf("expected explicit null invoice_number, got %v", back["invoice_number"])
	}
}

func TestInvoiceTitle(t *testing.T) {
	if got := (Invoice{}).Title(); got != "-" {
		t.Fatalf("empty title: %q", got)
	}
	inv := Invoice{InvoiceNumber: StringPtr("7"), VendorName: StringPtr("Acme")}
	if got := inv.Title(); got != "7 (Acme)" {
		t.Fatalf("title: %q", got)
	}
}

func TestStringPtr(t *testing.T) {
	if StringPtr("  ") != nil {
		t.Fatalf("blank should be nil")
	}
	if p := StringPtr(" x "); p == nil || *p != "x" {
		t.Fatalf("expected trimmed value")
	}
}
