// Package form holds the editable invoice draft behind the create and edit
// forms.
//
// A Draft is a value. Every operation returns a new Draft and leaves the
// receiver, and anything it points to, untouched, so a handler can decode
// the posted form, apply one operation and render the result without
// worrying about shared state.
package form

import (
	"errors"
	"fmt"

	"invoicedesk/internal/core"
)

// Mode tells whether a draft creates a new invoice or edits an existing one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	ErrItemIndex = errors.New("item index out of range")
	ErrLastItem  = errors.New("an invoice needs at least one item")
	ErrMissingID = errors.New("edit draft without invoice id")
)

// Draft is the in-progress invoice of one form.
type Draft struct {
	Invoice core.Invoice
	Mode    Mode
	// ID is the invoice being edited; empty in create mode.
	ID string
}

// NewCreate starts a blank draft.
func NewCreate() Draft {
	return Draft{Invoice: core.NewEmptyInvoice(), Mode: ModeCreate}
}

// NewEdit starts a draft from a stored invoice.
func NewEdit(inv core.Invoice) (Draft, error) {
	if inv.ID == "" {
		return Draft{}, ErrMissingID
	}
	d := Draft{Mode: ModeEdit, ID: inv.ID}
	return d.Replace(inv), nil
}

// IsEdit reports whether the draft updates an existing invoice.
func (d Draft) IsEdit() bool { return d.Mode == ModeEdit }

// Replace swaps the whole invoice, e.g. with the result of a bill upload.
// An invoice without items gets one empty row.
func (d Draft) Replace(inv core.Invoice) Draft {
	out := Draft{Mode: d.Mode, ID: d.ID, Invoice: inv.Clone()}
	if len(out.Invoice.Items) == 0 {
		out.Invoice.Items = []core.InvoiceItem{core.NewEmptyItem()}
	}
	if out.IsEdit() {
		out.Invoice.ID = d.ID
	}
	return out
}

// PatchHeader updates top-level fields. The HTTP handlers rebuild drafts
// with Decode; the Patch methods serve callers that edit a single field.
func (d Draft) PatchHeader(p HeaderPatch) Draft {
	out := d.clone()
	p.InvoiceNumber.apply(&out.Invoice.InvoiceNumber)
	p.InvoiceDate.apply(&out.Invoice.InvoiceDate)
	p.VendorName.apply(&out.Invoice.VendorName)
	p.Remarks.apply(&out.Invoice.Remarks)
	return out
}

// PatchItem updates the item at index.
func (d Draft) PatchItem(index int, p ItemPatch) (Draft, error) {
	if index < 0 || index >= len(d.Invoice.Items) {
		return d, fmt.Errorf("patch item %d: %w", index, ErrItemIndex)
	}
	out := d.clone()
	it := &out.Invoice.Items[index]
	p.HSNSAC.apply(&it.HSNSAC)
	p.ItemName.apply(&it.ItemName)
	p.Quantity.apply(&it.Quantity)
	p.Unit.apply(&it.Unit)
	p.RatePerQuantity.apply(&it.RatePerQuantity)
	p.DiscountPercent.apply(&it.DiscountPercent)
	p.Amount.apply(&it.Amount)
	p.SGSTPercent.apply(&it.SGSTPercent)
	p.CGSTPercent.apply(&it.CGSTPercent)
	p.IGSTPercent.apply(&it.IGSTPercent)
	return out, nil
}

// PatchTotals updates the totals block.
func (d Draft) PatchTotals(p TotalsPatch) Draft {
	out := d.clone()
	t := &out.Invoice.Totals
	p.TotalQuantity.apply(&t.TotalQuantity)
	p.TotalAmount.apply(&t.TotalAmount)
	p.TotalDiscountPercent.apply(&t.TotalDiscountPercent)
	p.TotalDiscountAmount.apply(&t.TotalDiscountAmount)
	p.FreightCharges.apply(&t.FreightCharges)
	p.TotalOtherCharges.apply(&t.TotalOtherCharges)
	p.TotalSGSTAmount.apply(&t.TotalSGSTAmount)
	p.TotalCGSTAmount.apply(&t.TotalCGSTAmount)
	p.TotalIGSTAmount.apply(&t.TotalIGSTAmount)
	p.NetAmount.apply(&t.NetAmount)
	return out
}

// AddItem appends an empty row.
func (d Draft) AddItem() Draft {
	out := d.clone()
	out.Invoice.Items = append(out.Invoice.Items, core.NewEmptyItem())
	return out
}

// RemoveItem drops the row at index. The last remaining row cannot be removed.
func (d Draft) RemoveItem(index int) (Draft, error) {
	if index < 0 || index >= len(d.Invoice.Items) {
		return d, fmt.Errorf("remove item %d: %w", index, ErrItemIndex)
	}
	if len(d.Invoice.Items) == 1 {
		return d, ErrLastItem
	}
	out := d.clone()
	out.Invoice.Items = append(out.Invoice.Items[:index:index], out.Invoice.Items[index+1:]...)
	return out, nil
}

func (d Draft) clone() Draft {
	return Draft{Mode: d.Mode, ID: d.ID, Invoice: d.Invoice.Clone()}
}
