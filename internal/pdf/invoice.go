// Package pdf renders a printable copy of an invoice.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"invoicedesk/internal/core"
)

// The core PDF fonts are cp1252, which has no rupee sign.
const currencyPrefix = "Rs. "

type column struct {
	title string
	width float64
	align string
	value func(core.InvoiceItem) string
}

var itemColumns = []column{
	{"#", 8, "C", nil},
	{"Item", 52, "L", func(it core.InvoiceItem) string { return core.StringValue(it.ItemName) }},
	{"HSN/SAC", 22, "L", func(it core.InvoiceItem) string { return core.StringValue(it.HSNSAC) }},
	{"Qty", 16, "R", func(it core.InvoiceItem) string { return core.FormatNumber(it.Quantity) }},
	{"Unit", 12, "L", func(it core.InvoiceItem) string { return core.StringValue(it.Unit) }},
	{"Rate", 22, "R", func(it core.InvoiceItem) string { return money(it.RatePerQuantity) }},
	{"Disc %", 14, "R", func(it core.InvoiceItem) string { return core.FormatNumber(it.DiscountPercent) }},
	{"Amount", 26, "R", func(it core.InvoiceItem) string { return money(it.Amount) }},
	{"GST %", 18, "R", gstPercent},
}

// Filename is the download name for inv.
func Filename(inv core.Invoice) string {
	name := strings.TrimSpace(core.StringValue(inv.InvoiceNumber))
	if name == "" {
		name = inv.ID
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, name)
	return "invoice-" + name + ".pdf"
}

// Render writes inv as an A4 PDF.
func Render(w io.Writer, inv core.Invoice) error {
	doc := gofpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(inv.Title(), true)
	doc.SetMargins(10, 12, 10)
	doc.AddPage()

	doc.SetFont("Arial", "B", 16)
	doc.CellFormat(0, 10, tr(inv.Title()), "", 1, "L", false, 0, "")

	doc.SetFont("Arial", "", 10)
	header := [][2]string{
		{"Invoice number", core.StringValue(inv.InvoiceNumber)},
		{"Invoice date", core.FormatInvoiceDate(inv.InvoiceDate)},
		{"Vendor", core.StringValue(inv.VendorName)},
	}
	for _, kv := range header {
		doc.SetFont("Arial", "B", 10)
		doc.CellFormat(35, 6, kv[0], "", 0, "L", false, 0, "")
		doc.SetFont("Arial", "", 10)
		doc.CellFormat(0, 6, tr(orDash(kv[1])), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	doc.SetFont("Arial", "B", 9)
	doc.SetFillColor(235, 235, 235)
	for _, c := range itemColumns {
		doc.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Arial", "", 9)
	for i, it := range inv.Items {
		for _, c := range itemColumns {
			text := fmt.Sprint(i + 1)
			if c.value != nil {
				text = tr(c.value(it))
			}
			doc.CellFormat(c.width, 6, fit(doc, text, c.width), "1", 0, c.align, false, 0, "")
		}
		doc.Ln(-1)
	}
	doc.Ln(4)

	t := inv.Totals
	totals := [][2]string{
		{"Total quantity", core.FormatNumber(t.TotalQuantity)},
		{"Total amount", money(t.TotalAmount)},
		{"Discount", money(t.TotalDiscountAmount)},
		{"Freight", money(t.FreightCharges)},
		{"Other charges", money(t.TotalOtherCharges)},
		{"SGST", money(t.TotalSGSTAmount)},
		{"CGST", money(t.TotalCGSTAmount)},
		{"IGST", money(t.TotalIGSTAmount)},
	}
	for _, kv := range totals {
		doc.CellFormat(140, 6, kv[0], "", 0, "R", false, 0, "")
		doc.CellFormat(50, 6, kv[1], "", 1, "R", false, 0, "")
	}
	doc.SetFont("Arial", "B", 11)
	doc.CellFormat(140, 8, "Net amount", "T", 0, "R", false, 0, "")
	doc.CellFormat(50, 8, money(t.NetAmount), "T", 1, "R", false, 0, "")

	if remarks := strings.TrimSpace(core.StringValue(inv.Remarks)); remarks != "" {
		doc.Ln(4)
		doc.SetFont("Arial", "I", 9)
		doc.MultiCell(0, 5, tr("Remarks: "+remarks), "", "L", false)
	}

	if err := doc.Error(); err != nil {
		return fmt.Errorf("render invoice pdf: %w", err)
	}
	return doc.Output(w)
}

// Bytes renders inv into memory.
func Bytes(inv core.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, inv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func money(f *float64) string {
	return strings.Replace(core.FormatRupees(f), "₹", currencyPrefix, 1)
}

func gstPercent(it core.InvoiceItem) string {
	sum := core.Value(it.SGSTPercent) + core.Value(it.CGSTPercent) + core.Value(it.IGSTPercent)
	if it.SGSTPercent == nil && it.CGSTPercent == nil && it.IGSTPercent == nil {
		return "-"
	}
	return core.FormatNumber(&sum)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// fit truncates text to the cell width.
func fit(doc *gofpdf.Fpdf, text string, width float64) string {
	const padding = 2
	if doc.GetStringWidth(text) <= width-padding {
		return text
	}
	for len(text) > 0 && doc.GetStringWidth(text+"..") > width-padding {
		text = text[:len(text)-1]
	}
	return text + ".."
}
