package core

import (
	"sort"
	"strings"
	"time"
)

// YearlyReport is the purchase total for one year.
type YearlyReport struct {
	Year           int     `json:"_id"`
	PurchaseAmount float64 `json:"purchaseAmount"`
}

// VendorReport is the purchase total for one vendor within a year.
type VendorReport struct {
	Vendor         string  `json:"_id"`
	PurchaseAmount float64 `json:"purchaseAmount"`
}

// AllInvoiceRecord is the flattened row returned by the all-invoices listing.
type AllInvoiceRecord struct {
	InvoiceID     string   `json:"invoice_id"`
	InvoiceNumber *string  `json:"invoice_number"`
	InvoiceDate   *string  `json:"invoice_date"`
	VendorName    *string  `json:"vendor_name"`
	TotalAmount   *float64 `json:"total_amount"`
	CGST          *float64 `json:"cgst"`
	SGST          *float64 `json:"sgst"`
	IGST          *float64 `json:"igst"`
	OtherCharges  *float64 `json:"other_charges"`
	NetAmount     *float64 `json:"net_amount"`
}

// Pagination describes one page of a paged listing.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	Limit        int `json:"limit"`
	TotalRecords int `json:"totalRecords"`
	TotalPages   int `json:"totalPages"`
}

// AllInvoicesPage is one page of the all-invoices listing.
type AllInvoicesPage struct {
	Data       []AllInvoiceRecord `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// FirstRecord is the 1-based index of the first record on the page.
func (p Pagination) FirstRecord() int {
	if p.TotalRecords == 0 {
		return 0
	}
	return (p.CurrentPage-1)*p.Limit + 1
}

// LastRecord is the 1-based index of the last record on the page.
func (p Pagination) LastRecord() int {
	last := p.CurrentPage * p.Limit
	if last > p.TotalRecords {
		return p.TotalRecords
	}
	return last
}

func (p Pagination) HasPrev() bool { return p.CurrentPage > 1 }
func (p Pagination) HasNext() bool { return p.CurrentPage < p.TotalPages }

// SortYearsDesc orders yearly totals newest first.
func SortYearsDesc(in []YearlyReport) []YearlyReport {
	out := append([]YearlyReport(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out
}

// SortVendorsByAmount orders vendors by purchase amount, largest first.
func SortVendorsByAmount(in []VendorReport) []VendorReport {
	out := append([]VendorReport(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchaseAmount > out[j].PurchaseAmount })
	return out
}

// SortInvoicesByDateDesc orders invoices newest first. Invoices without a
// parsable date sort last.
func SortInvoicesByDateDesc(in []Invoice) []Invoice {
	out := append([]Invoice(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := ParseInvoiceDate(StringValue(out[i].InvoiceDate))
		tj, okJ := ParseInvoiceDate(StringValue(out[j].InvoiceDate))
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
	return out
}

// SumYearly returns the total purchase amount across years.
func SumYearly(rows []YearlyReport) float64 {
	var total float64
	for _, r := range rows {
		total += r.PurchaseAmount
	}
	return total
}

// SumVendors returns the total purchase amount across vendors.
func SumVendors(rows []VendorReport) float64 {
	var total float64
	for _, r := range rows {
		total += r.PurchaseAmount
	}
	return total
}

// SumNet returns the sum of net amounts, unset amounts counting as zero.
func SumNet(invoices []Invoice) float64 {
	var total float64
	for _, inv := range invoices {
		total += inv.Net()
	}
	return total
}

var invoiceDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"02/01/2006",
	"02-01-2006",
}

// ParseInvoiceDate accepts the date shapes the API and bill extraction produce.
func ParseInvoiceDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range invoiceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatInvoiceDate renders dates as "02 Jan 2006"; "-" when unset and
// the raw input when it cannot be parsed.
func FormatInvoiceDate(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	t, ok := ParseInvoiceDate(*s)
	if !ok {
		return *s
	}
	return t.Format("02 Jan 2006")
}

// DateInputValue renders a date for an <input type="date">.
func DateInputValue(s *string) string {
	if s == nil {
		return ""
	}
	t, ok := ParseInvoiceDate(*s)
	if !ok {
		return *s
	}
	return t.Format("2006-01-02")
}
