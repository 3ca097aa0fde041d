package form

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"

	"invoicedesk/internal/core"
)

// MaxItems bounds the rows accepted from one posted form.
const MaxItems = 500

var ErrTooManyItems = fmt.Errorf("more than %d items", MaxItems)

// FieldError reports a posted value that could not be parsed.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: invalid number %q", e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Err }

var (
	itemKeyRe   = regexp.MustCompile(`^items\[(\d+)\]\[([a-z_]+)\]$`)
	totalsKeyRe = regexp.MustCompile(`^totals\[([a-z_]+)\]$`)
)

var itemStrings = map[string]func(*core.InvoiceItem) **string{
	"barcode_number_hsn_sac": func(it *core.InvoiceItem) **string { return &it.HSNSAC },
	"item_name":              func(it *core.InvoiceItem) **string { return &it.ItemName },
	"unit":                   func(it *core.InvoiceItem) **string { return &it.Unit },
}

var itemNumbers = map[string]func(*core.InvoiceItem) **float64{
	"quantity":          func(it *core.InvoiceItem) **float64 { return &it.Quantity },
	"rate_per_quantity": func(it *core.InvoiceItem) **float64 { return &it.RatePerQuantity },
	"discount_percent":  func(it *core.InvoiceItem) **float64 { return &it.DiscountPercent },
	"amount":            func(it *core.InvoiceItem) **float64 { return &it.Amount },
	"sgst_percent":      func(it *core.InvoiceItem) **float64 { return &it.SGSTPercent },
	"cgst_percent":      func(it *core.InvoiceItem) **float64 { return &it.CGSTPercent },
	"igst_percent":      func(it *core.InvoiceItem) **float64 { return &it.IGSTPercent },
}

var totalNumbers = map[string]func(*core.InvoiceTotals) **float64{
	"total_quantity":         func(t *core.InvoiceTotals) **float64 { return &t.TotalQuantity },
	"total_amount":           func(t *core.InvoiceTotals) **float64 { return &t.TotalAmount },
	"total_discount_percent": func(t *core.InvoiceTotals) **float64 { return &t.TotalDiscountPercent },
	"total_discount_amount":  func(t *core.InvoiceTotals) **float64 { return &t.TotalDiscountAmount },
	"freight_charges":        func(t *core.InvoiceTotals) **float64 { return &t.FreightCharges },
	"total_other_charges":    func(t *core.InvoiceTotals) **float64 { return &t.TotalOtherCharges },
	"total_sgst_amount":      func(t *core.InvoiceTotals) **float64 { return &t.TotalSGSTAmount },
	"total_cgst_amount":      func(t *core.InvoiceTotals) **float64 { return &t.TotalCGSTAmount },
	"total_igst_amount":      func(t *core.InvoiceTotals) **float64 { return &t.TotalIGSTAmount },
	"net_amount":             func(t *core.InvoiceTotals) **float64 { return &t.NetAmount },
}

// Decode rebuilds a draft from a posted form.
//
// Recognised keys are mode, id, invoice_number, invoice_date, vendor_name,
// remarks, items[N][field] and totals[field]. Item rows are ordered by N and
// renumbered from zero. Blank values decode to nil. Numbers that do not
// parse are reported as *FieldError (joined when several) while the rest of
// the draft is still returned, so the form can be shown again.
func Decode(values url.Values) (Draft, error) {
	d := Draft{Mode: ModeCreate}
	if Mode(values.Get("mode")) == ModeEdit {
		d.Mode = ModeEdit
		d.ID = values.Get("id")
		if d.ID == "" {
			return NewCreate(), ErrMissingID
		}
	}

	inv := core.Invoice{ID: d.ID}
	inv.InvoiceNumber = core.StringPtr(values.Get("invoice_number"))
	inv.InvoiceDate = core.StringPtr(values.Get("invoice_date"))
	inv.VendorName = core.StringPtr(values.Get("vendor_name"))
	inv.Remarks = core.StringPtr(values.Get("remarks"))

	var errs []error
	rows := map[int]*core.InvoiceItem{}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		raw := vals[0]

		if m := itemKeyRe.FindStringSubmatch(key); m != nil {
			idx, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			it, ok := rows[idx]
			if !ok {
				if len(rows) >= MaxItems {
					return NewCreate(), ErrTooManyItems
				}
				it = &core.InvoiceItem{}
				rows[idx] = it
			}
			if get, ok := itemStrings[m[2]]; ok {
				*get(it) = core.StringPtr(raw)
			} else if get, ok := itemNumbers[m[2]]; ok {
				v, err := core.ParseOptionalDecimal(raw)
				if err != nil {
					errs = append(errs, &FieldError{Field: key, Value: raw, Err: err})
				}
				*get(it) = v
			}
			continue
		}

		if m := totalsKeyRe.FindStringSubmatch(key); m != nil {
			if get, ok := totalNumbers[m[1]]; ok {
				v, err := core.ParseOptionalDecimal(raw)
				if err != nil {
					errs = append(errs, &FieldError{Field: key, Value: raw, Err: err})
				}
				*get(&inv.Totals) = v
			}
		}
	}

	indices := make([]int, 0, len(rows))
	for idx := range rows {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		inv.Items = append(inv.Items, *rows[idx])
	}

	sort.Slice(errs, func(i, j int) bool {
		var a, b *FieldError
		errors.As(errs[i], &a)
		errors.As(errs[j], &b)
		return a.Field < b.Field
	})

	return d.Replace(inv), errors.Join(errs...)
}

// ItemField is the posted name of an item field, used by templates.
func ItemField(index int, name string) string {
	return fmt.Sprintf("items[%d][%s]", index, name)
}

// TotalsField is the posted name of a totals field.
func TotalsField(name string) string {
	return "totals[" + name + "]"
}
