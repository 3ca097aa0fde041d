package http

import (
	"net/http"
	"strconv"

	"invoicedesk/internal/core"
)

type dashboardData struct {
	Years []core.YearlyReport
	Total float64
}

type vendorsData struct {
	Year    int
	Vendors []core.VendorReport
	Total   float64
}

type invoiceListData struct {
	Year     int
	Vendor   string
	Invoices []core.Invoice
	Total    float64
}

type invoiceDetailData struct {
	Invoice core.Invoice
}

type allInvoicesData struct {
	Records    []core.AllInvoiceRecord
	Pagination core.Pagination
}

// handleDashboard renders the yearly purchase summary.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := s.newView(r, "Yearly summary")
	years, err := s.service.YearlyReport(r.Context())
	if err != nil {
		s.failPage(w, r, "dashboard", v, err)
		return
	}
	v.Data = dashboardData{Years: years, Total: core.SumYearly(years)}
	s.renderPage(w, r, http.StatusOK, "dashboard", v)
}

// handleVendors renders the vendor totals of one year.
func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.PathValue("year"))
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	v := s.newView(r, "Vendors in "+strconv.Itoa(year))
	v.Data = vendorsData{Year: year}

	vendors, err := s.service.VendorReport(r.Context(), year)
	if err != nil {
		s.failPage(w, r, "vendors", v, err)
		return
	}
	v.Data = vendorsData{Year: year, Vendors: vendors, Total: core.SumVendors(vendors)}
	s.renderPage(w, r, http.StatusOK, "vendors", v)
}

// handleInvoiceList renders the invoices of one vendor in one year.
func (s *Server) handleInvoiceList(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYear(r.PathValue("year"))
	vendor := r.PathValue("vendor")
	if err != nil || vendor == "" {
		s.handleNotFound(w, r)
		return
	}
	v := s.newView(r, vendor+" ("+strconv.Itoa(year)+")")
	v.Data = invoiceListData{Year: year, Vendor: vendor}

	invoices, err := s.service.SearchInvoices(r.Context(), year, vendor)
	if err != nil {
		s.failPage(w, r, "invoice_list", v, err)
		return
	}
	v.Data = invoiceListData{Year: year, Vendor: vendor, Invoices: invoices, Total: core.SumNet(invoices)}
	s.renderPage(w, r, http.StatusOK, "invoice_list", v)
}

func (s *Server) handleInvoiceDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v := s.newView(r, "Invoice")
	inv, err := s.service.GetInvoice(r.Context(), id)
	if err != nil {
		s.failPage(w, r, "invoice_detail", v, err)
		return
	}
	v.Title = inv.Title()
	v.Data = invoiceDetailData{Invoice: inv}
	s.renderPage(w, r, http.StatusOK, "invoice_detail", v)
}

// handleAllInvoices renders one page of the flat invoice listing.
func (s *Server) handleAllInvoices(w http.ResponseWriter, r *http.Request) {
	page := ParsePage(r.URL.Query())
	v := s.newView(r, "All invoices")

	result, err := s.service.AllInvoices(r.Context(), page, s.pageLimit)
	if err != nil {
		s.failPage(w, r, "all_invoices", v, err)
		return
	}
	p := result.Pagination
	if p.CurrentPage == 0 {
		p.CurrentPage = page
	}
	if p.Limit == 0 {
		p.Limit = s.pageLimit
	}
	v.Data = allInvoicesData{Records: result.Data, Pagination: p}
	s.renderPage(w, r, http.StatusOK, "all_invoices", v)
}
