// Package export maps an application page to the spreadsheet export that
// belongs to it.
package export

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"invoicedesk/internal/api"
)

// Kind names one of the five export endpoints.
type Kind string

const (
	KindYearly       Kind = "yearly"
	KindAllSummary   Kind = "all-summary"
	KindDetails      Kind = "details"
	KindByYearVendor Kind = "by-year-vendor"
	KindExcel        Kind = "excel"
)

var ErrNotExportable = errors.New("page has no export")

// Target is a resolved export request.
type Target struct {
	Kind      Kind
	InvoiceID string
	Year      int
	Vendor    string
}

var yearVendorPattern = regexp.MustCompile(`/invoices/(\d+)/(.+)$`)

// Resolve picks the export for path. The checks run in a fixed order and
// the first match wins, so "/invoice/x" is a detail export while
// "/invoices/2024/x" is a year-and-vendor export.
func Resolve(path string) (Target, bool) {
	switch {
	case path == "/":
		return Target{Kind: KindYearly}, true
	case path == "/all-invoices":
		return Target{Kind: KindAllSummary}, true
	case strings.HasPrefix(path, "/invoice/"):
		id := path[strings.LastIndex(path, "/")+1:]
		if id == "" {
			return Target{}, false
		}
		// Pages hand over escaped paths; the API wants the raw id, so it is
		// decoded like the vendor segment below.
		if dec, err := url.PathUnescape(id); err == nil {
			id = dec
		}
		return Target{Kind: KindDetails, InvoiceID: id}, true
	case strings.Contains(path, "/invoices/"):
		m := yearVendorPattern.FindStringSubmatch(path)
		if m == nil {
			return Target{}, false
		}
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return Target{}, false
		}
		vendor, err := url.PathUnescape(m[2])
		if err != nil {
			vendor = m[2]
		}
		return Target{Kind: KindByYearVendor, Year: year, Vendor: vendor}, true
	case strings.Contains(path, "/vendors/"):
		return Target{Kind: KindExcel}, true
	}
	return Target{}, false
}

// Exporter is the subset of the API client used for downloads.
type Exporter interface {
	ExportYearly(ctx context.Context) (*api.Download, error)
	ExportAllSummary(ctx context.Context) (*api.Download, error)
	ExportInvoiceDetails(ctx context.Context, id string) (*api.Download, error)
	ExportByYearVendor(ctx context.Context, year int, vendor string) (*api.Download, error)
	ExportExcel(ctx context.Context) (*api.Download, error)
}

type Dispatcher struct {
	api Exporter
}

func NewDispatcher(client Exporter) *Dispatcher {
	return &Dispatcher{api: client}
}

// Export resolves path and fetches the matching file.
func (d *Dispatcher) Export(ctx context.Context, path string) (*api.Download, Target, error) {
	t, ok := Resolve(path)
	if !ok {
		return nil, Target{}, fmt.Errorf("%w: %q", ErrNotExportable, path)
	}

	var (
		dl  *api.Download
		err error
	)
	switch t.Kind {
	case KindYearly:
		dl, err = d.api.ExportYearly(ctx)
	case KindAllSummary:
		dl, err = d.api.ExportAllSummary(ctx)
	case KindDetails:
		dl, err = d.api.ExportInvoiceDetails(ctx, t.InvoiceID)
	case KindByYearVendor:
		dl, err = d.api.ExportByYearVendor(ctx, t.Year, t.Vendor)
	default:
		dl, err = d.api.ExportExcel(ctx)
	}
	if err != nil {
		return nil, t, fmt.Errorf("export %s: %w", t.Kind, err)
	}
	return dl, t, nil
}
