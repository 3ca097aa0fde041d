package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Download is a file produced by an export endpoint.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

func (c *Client) ExportYearly(ctx context.Context) (*Download, error) {
	return c.download(ctx, request{op: OpExportYearly, method: http.MethodGet, path: "/export/yearly"},
		"invoices-yearly.xlsx")
}

func (c *Client) ExportByYearVendor(ctx context.Context, year int, vendor string) (*Download, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("vendor", vendor)
	return c.download(ctx, request{op: OpExportYV, method: http.MethodGet, path: "/export/by-year-vendor", query: q},
		fmt.Sprintf("invoices-%d-%s.xlsx", year, vendor))
}

func (c *Client) ExportInvoiceDetails(ctx context.Context, id string) (*Download, error) {
	return c.download(ctx, request{op: OpExportDetails, method: http.MethodGet, path: "/export/details/" + url.PathEscape(id)},
		"invoice-"+id+".xlsx")
}

func (c *Client) ExportAllSummary(ctx context.Context) (*Download, error) {
	return c.download(ctx, request{op: OpExportAll, method: http.MethodGet, path: "/export/all-summary"},
		"invoices-all.xlsx")
}

func (c *Client) ExportExcel(ctx context.Context) (*Download, error) {
	return c.download(ctx, request{op: OpExportExcel, method: http.MethodGet, path: "/export/excel"},
		"invoices.xlsx")
}

func (c *Client) download(ctx context.Context, r request, filename string) (*Download, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &StatusError{Op: r.op, StatusCode: resp.StatusCode, Message: r.op.Message(), Err: err}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = xlsxContentType
	}
	return &Download{Filename: filename, ContentType: ct, Body: body}, nil
}
