package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"invoicedesk/internal/core"
)

// DeleteResult is the API's answer to a delete.
type DeleteResult struct {
	Success bool `json:"success"`
	Deleted bool `json:"deleted"`
}

// UploadBill sends a bill image for extraction and returns the prefilled invoice.
// The body is multipart with the file under "bill".
func (c *Client) UploadBill(ctx context.Context, filename string, file io.Reader) (core.Invoice, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("bill", filename)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("%s: %w", OpUpload, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return core.Invoice{}, fmt.Errorf("%s: read file: %w", OpUpload, err)
	}
	if err := mw.Close(); err != nil {
		return core.Invoice{}, fmt.Errorf("%s: %w", OpUpload, err)
	}

	var inv core.Invoice
	err = c.do(ctx, request{
		op:          OpUpload,
		method:      http.MethodPost,
		path:        "/upload",
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &inv)
	return inv, err
}

func (c *Client) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	inv.ID = ""
	req, err := c.jsonRequest(OpCreateInvoice, http.MethodPost, "/invoice", inv)
	if err != nil {
		return core.Invoice{}, err
	}
	var out core.Invoice
	err = c.do(ctx, req, &out)
	return out, err
}

func (c *Client) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	if id == "" {
		return core.Invoice{}, core.ErrNotPersist
	}
	var out core.Invoice
	err := c.do(ctx, request{op: OpGetInvoice, method: http.MethodGet, path: invoicePath(id)}, &out)
	return out, err
}

func (c *Client) UpdateInvoice(ctx context.Context, id string, inv core.Invoice) (core.Invoice, error) {
	if id == "" {
		return core.Invoice{}, core.ErrNotPersist
	}
	req, err := c.jsonRequest(OpUpdateInvoice, http.MethodPut, invoicePath(id), inv)
	if err != nil {
		return core.Invoice{}, err
	}
	var out core.Invoice
	err = c.do(ctx, req, &out)
	return out, err
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) (DeleteResult, error) {
	if id == "" {
		return DeleteResult{}, core.ErrNotPersist
	}
	var out DeleteResult
	err := c.do(ctx, request{op: OpDeleteInvoice, method: http.MethodDelete, path: invoicePath(id)}, &out)
	return out, err
}

// SearchInvoices lists the invoices of one vendor in one year.
func (c *Client) SearchInvoices(ctx context.Context, year int, vendor string) ([]core.Invoice, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("vendor", vendor)

	var out []core.Invoice
	err := c.do(ctx, request{op: OpSearchInvoices, method: http.MethodGet, path: "/invoice/search", query: q}, &out)
	return out, err
}

// AllInvoices returns one page of the flattened invoice listing.
func (c *Client) AllInvoices(ctx context.Context, page, limit int) (core.AllInvoicesPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out core.AllInvoicesPage
	err := c.do(ctx, request{op: OpAllInvoices, method: http.MethodGet, path: "/invoice/all", query: q}, &out)
	return out, err
}

func invoicePath(id string) string {
	return "/invoice/" + url.PathEscape(id)
}
