package core

import (
	"errors"
	"strings"
)

type (
	// InvoiceItem is one line of a purchase invoice. Every field is nullable
	// because bill extraction may leave any of them blank.
	InvoiceItem struct {
		HSNSAC          *string  `json:"barcode_number_hsn_sac"`
		ItemName        *string  `json:"item_name"`
		Quantity        *float64 `json:"quantity" validate:"omitempty,gte=0"`
		Unit            *string  `json:"unit"`
		RatePerQuantity *float64 `json:"rate_per_quantity" validate:"omitempty,gte=0"`
		DiscountPercent *float64 `json:"discount_percent" validate:"omitempty,gte=0,lte=100"`
		Amount          *float64 `json:"amount" validate:"omitempty,gte=0"`
		SGSTPercent     *float64 `json:"sgst_percent" validate:"omitempty,gte=0,lte=100"`
		CGSTPercent     *float64 `json:"cgst_percent" validate:"omitempty,gte=0,lte=100"`
		IGSTPercent     *float64 `json:"igst_percent" validate:"omitempty,gte=0,lte=100"`
	}

	// InvoiceTotals is the aggregated block at the foot of an invoice.
	InvoiceTotals struct {
		TotalQuantity        *float64 `json:"total_quantity" validate:"omitempty,gte=0"`
		TotalAmount          *float64 `json:"total_amount" validate:"omitempty,gte=0"`
		TotalDiscountPercent *float64 `json:"total_discount_percent" validate:"omitempty,gte=0,lte=100"`
		TotalDiscountAmount  *float64 `json:"total_discount_amount" validate:"omitempty,gte=0"`
		FreightCharges       *float64 `json:"freight_charges" validate:"omitempty,gte=0"`
		TotalOtherCharges    *float64 `json:"total_other_charges" validate:"omitempty,gte=0"`
		TotalSGSTAmount      *float64 `json:"total_sgst_amount" validate:"omitempty,gte=0"`
		TotalCGSTAmount      *float64 `json:"total_cgst_amount" validate:"omitempty,gte=0"`
		TotalIGSTAmount      *float64 `json:"total_igst_amount" validate:"omitempty,gte=0"`
		NetAmount            *float64 `json:"net_amount" validate:"omitempty,gte=0"`
	}

	// Invoice is a purchase invoice as exchanged with the invoice API.
	Invoice struct {
		ID            string        `json:"_id,omitempty"`
		InvoiceNumber *string       `json:"invoice_number"`
		InvoiceDate   *string       `json:"invoice_date"`
		VendorName    *string       `json:"vendor_name"`
		Remarks       *string       `json:"remarks"`
		Items         []InvoiceItem `json:"items" validate:"min=1,dive"`
		Totals        InvoiceTotals `json:"totals"`
		Year          int           `json:"year,omitempty"`
		CreatedAt     string        `json:"createdAt,omitempty"`
	}
)

var ErrNotPersist = errors.New("invoice has no identifier")

// NewEmptyItem returns an item with every field unset.
func NewEmptyItem() InvoiceItem {
	return InvoiceItem{}
}

// NewEmptyInvoice returns the blank invoice a create form starts from:
// header fields unset, one empty item row and empty totals.
func NewEmptyInvoice() Invoice {
	return Invoice{Items: []InvoiceItem{NewEmptyItem()}}
}

// Clone returns a deep copy; no pointer or slice is shared with the receiver.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.InvoiceNumber = cloneString(inv.InvoiceNumber)
	out.InvoiceDate = cloneString(inv.InvoiceDate)
	out.VendorName = cloneString(inv.VendorName)
	out.Remarks = cloneString(inv.Remarks)
	if inv.Items != nil {
		out.Items = make([]InvoiceItem, len(inv.Items))
		for i, it := range inv.Items {
			out.Items[i] = it.Clone()
		}
	}
	out.Totals = inv.Totals.Clone()
	return out
}

// Clone returns a deep copy of the item.
func (it InvoiceItem) Clone() InvoiceItem {
	return InvoiceItem{
		HSNSAC:          cloneString(it.HSNSAC),
		ItemName:        cloneString(it.ItemName),
		Quantity:        cloneFloat(it.Quantity),
		Unit:            cloneString(it.Unit),
		RatePerQuantity: cloneFloat(it.RatePerQuantity),
		DiscountPercent: cloneFloat(it.DiscountPercent),
		Amount:          cloneFloat(it.Amount),
		SGSTPercent:     cloneFloat(it.SGSTPercent),
		CGSTPercent:     cloneFloat(it.CGSTPercent),
		IGSTPercent:     cloneFloat(it.IGSTPercent),
	}
}

// Clone returns a deep copy of the totals block.
func (t InvoiceTotals) Clone() InvoiceTotals {
	return InvoiceTotals{
		TotalQuantity:        cloneFloat(t.TotalQuantity),
		TotalAmount:          cloneFloat(t.TotalAmount),
		TotalDiscountPercent: cloneFloat(t.TotalDiscountPercent),
		TotalDiscountAmount:  cloneFloat(t.TotalDiscountAmount),
		FreightCharges:       cloneFloat(t.FreightCharges),
		TotalOtherCharges:    cloneFloat(t.TotalOtherCharges),
		TotalSGSTAmount:      cloneFloat(t.TotalSGSTAmount),
		TotalCGSTAmount:      cloneFloat(t.TotalCGSTAmount),
		TotalIGSTAmount:      cloneFloat(t.TotalIGSTAmount),
		NetAmount:            cloneFloat(t.NetAmount),
	}
}

// Net returns the net amount or zero when unset.
func (inv Invoice) Net() float64 {
	return Value(inv.Totals.NetAmount)
}

// Title is a human label for lists and logs.
func (inv Invoice) Title() string {
	num := strings.TrimSpace(StringValue(inv.InvoiceNumber))
	if num == "" {
		num = "-"
	}
	vendor := strings.TrimSpace(StringValue(inv.VendorName))
	if vendor == "" {
		return num
	}
	return num + " (" + vendor + ")"
}

// StringPtr returns nil for blank input, otherwise a pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Value dereferences f, returning 0 for nil.
func Value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
