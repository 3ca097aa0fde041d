package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ports "invoicedesk/internal/sheets"
)

// Column layout A..I.
var columns = []string{
	"Invoice ID", "Invoice Number", "Invoice Date", "Vendor", "Year",
	"Net Amount", "Last Action", "Updated By", "Updated At",
}

const lastColumn = "I"

func headerRow() []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = c
	}
	return out
}

func isHeader(values []any) bool {
	return len(values) > 0 && strings.EqualFold(strings.TrimSpace(fmt.Sprint(values[0])), columns[0])
}

func encodeRow(r ports.LedgerRow) []any {
	updated := ""
	if !r.UpdatedAt.IsZero() {
		updated = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	year := ""
	if r.Year > 0 {
		year = strconv.Itoa(r.Year)
	}
	return []any{
		r.InvoiceID,
		r.InvoiceNumber,
		r.InvoiceDate,
		r.Vendor,
		year,
		strconv.FormatFloat(r.NetAmount, 'f', 2, 64),
		r.LastAction,
		r.UpdatedBy,
		updated,
	}
}

// decodeRow parses one values row. Cleared rows and rows without an
// invoice id are reported as not ok.
func decodeRow(values []any) (ports.LedgerRow, bool) {
	cols := make([]string, len(columns))
	for i := range cols {
		if i < len(values) {
			cols[i] = strings.TrimSpace(fmt.Sprint(values[i]))
		}
	}
	if cols[0] == "" {
		return ports.LedgerRow{}, false
	}
	row := ports.LedgerRow{
		InvoiceID:     cols[0],
		InvoiceNumber: cols[1],
		InvoiceDate:   cols[2],
		Vendor:        cols[3],
		LastAction:    cols[6],
		UpdatedBy:     cols[7],
	}
	row.Year, _ = strconv.Atoi(cols[4])
	if f, err := strconv.ParseFloat(strings.ReplaceAll(cols[5], ",", ""), 64); err == nil {
		row.NetAmount = f
	}
	if t, err := time.Parse(time.RFC3339, cols[8]); err == nil {
		row.UpdatedAt = t
	}
	return row, true
}
