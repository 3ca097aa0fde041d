package services

import (
	"context"
	"io"
	"log/slog"

	"invoicedesk/internal/api"
	"invoicedesk/internal/auth"
	"invoicedesk/internal/core"
	"invoicedesk/internal/events"
)

// InvoiceAPI is the part of the API client the service relies on.
type InvoiceAPI interface {
	UploadBill(ctx context.Context, filename string, file io.Reader) (core.Invoice, error)
	CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, inv core.Invoice) (core.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) (api.DeleteResult, error)
	SearchInvoices(ctx context.Context, year int, vendor string) ([]core.Invoice, error)
	AllInvoices(ctx context.Context, page, limit int) (core.AllInvoicesPage, error)
	YearlyReport(ctx context.Context) ([]core.YearlyReport, error)
	VendorReport(ctx context.Context, year int) ([]core.VendorReport, error)
}

// InvoiceService fronts the invoice API for the web handlers: report reads
// go through the per-session cache, and mutations invalidate the cached
// reports of every session and emit change events.
type InvoiceService struct {
	api       InvoiceAPI
	reports   *ReportCache
	publisher events.Publisher
}

func NewInvoiceService(client InvoiceAPI, reports *ReportCache, publisher events.Publisher) *InvoiceService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &InvoiceService{api: client, reports: reports, publisher: publisher}
}

// scope keys cached data by session so users never see each other's reports.
func scope(ctx context.Context) string {
	if s, ok := auth.FromContext(ctx); ok {
		return s.ID
	}
	return "anonymous"
}

func username(ctx context.Context) string {
	if s, ok := auth.FromContext(ctx); ok {
		return s.Username
	}
	return ""
}

// YearlyReport returns the yearly totals, newest year first.
func (s *InvoiceService) YearlyReport(ctx context.Context) ([]core.YearlyReport, error) {
	rows, err := s.reports.Yearly(ctx, scope(ctx), s.api.YearlyReport)
	if err != nil {
		return nil, err
	}
	return core.SortYearsDesc(rows), nil
}

// VendorReport returns the vendor totals of year, largest first.
func (s *InvoiceService) VendorReport(ctx context.Context, year int) ([]core.VendorReport, error) {
	rows, err := s.reports.Vendors(ctx, scope(ctx), year, s.api.VendorReport)
	if err != nil {
		return nil, err
	}
	return core.SortVendorsByAmount(rows), nil
}

// SearchInvoices lists the invoices of a vendor in a year, newest first.
func (s *InvoiceService) SearchInvoices(ctx context.Context, year int, vendor string) ([]core.Invoice, error) {
	rows, err := s.api.SearchInvoices(ctx, year, vendor)
	if err != nil {
		return nil, err
	}
	return core.SortInvoicesByDateDesc(rows), nil
}

func (s *InvoiceService) AllInvoices(ctx context.Context, page, limit int) (core.AllInvoicesPage, error) {
	return s.api.AllInvoices(ctx, page, limit)
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	return s.api.GetInvoice(ctx, id)
}

func (s *InvoiceService) UploadBill(ctx context.Context, filename string, file io.Reader) (core.Invoice, error) {
	return s.api.UploadBill(ctx, filename, file)
}

func (s *InvoiceService) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	created, err := s.api.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, err
	}
	s.afterChange(ctx, events.ActionCreated, created)
	return created, nil
}

func (s *InvoiceService) UpdateInvoice(ctx context.Context, id string, inv core.Invoice) (core.Invoice, error) {
	updated, err := s.api.UpdateInvoice(ctx, id, inv)
	if err != nil {
		return core.Invoice{}, err
	}
	if updated.ID == "" {
		updated.ID = id
	}
	s.afterChange(ctx, events.ActionUpdated, updated)
	return updated, nil
}

// DeleteInvoice removes an invoice. The event carries what was known about
// the invoice before deletion when before is non-nil.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id string, before *core.Invoice) error {
	if _, err := s.api.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	inv := core.Invoice{ID: id}
	if before != nil {
		inv = before.Clone()
		inv.ID = id
	}
	s.afterChange(ctx, events.ActionDeleted, inv)
	return nil
}

func (s *InvoiceService) afterChange(ctx context.Context, action events.Action, inv core.Invoice) {
	s.reports.Invalidate()
	if inv.ID == "" {
		slog.WarnContext(ctx, "Invoice change without id, event skipped", "action", action)
		return
	}
	// The API call already succeeded; a lost event must not fail the request.
	if err := s.publisher.Publish(ctx, events.NewInvoiceChanged(action, inv, username(ctx))); err != nil {
		slog.ErrorContext(ctx, "Failed to publish invoice event",
			"action", action,
			"invoice_id", inv.ID,
			"error", err)
	}
}
