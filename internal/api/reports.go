package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"invoicedesk/internal/core"
)

func (c *Client) YearlyReport(ctx context.Context) ([]core.YearlyReport, error) {
	var out []core.YearlyReport
	err := c.do(ctx, request{op: OpYearlyReport, method: http.MethodGet, path: "/reports/yearly"}, &out)
	return out, err
}

func (c *Client) VendorReport(ctx context.Context, year int) ([]core.VendorReport, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))

	var out []core.VendorReport
	err := c.do(ctx, request{op: OpVendorReport, method: http.MethodGet, path: "/reports/vendors", query: q}, &out)
	return out, err
}
