package http

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"invoicedesk/internal/api"
	"invoicedesk/internal/auth"
	"invoicedesk/internal/core"
	"invoicedesk/internal/form"
	applog "invoicedesk/internal/log"
	"invoicedesk/internal/pdf"
)

// Form operations posted to /ui/invoice-form/{op}.
const (
	opAddItem    = "add-item"
	opRemoveItem = "remove-item"
	opRecompute  = "recompute"
	opUpload     = "upload"
)

// formData feeds the invoice_form partial.
type formData struct {
	Draft    form.Draft
	Error    string
	Problems []string
	// Return is where Cancel leads and where a saved invoice without an id
	// sends the browser.
	Return string
}

func (s *Server) handleNewInvoiceForm(w http.ResponseWriter, r *http.Request) {
	ret := r.URL.Query().Get("return")
	if ret == "" {
		ret = currentPath(r)
	}
	s.renderPartial(w, r, NewHTMXResponse(), "invoice_form", formData{
		Draft:  form.NewCreate(),
		Return: auth.SafeNext(ret),
	})
}

func (s *Server) handleEditInvoiceForm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	inv, err := s.service.GetInvoice(r.Context(), id)
	if err != nil {
		s.fragmentError(w, r, err, applog.OpRead)
		return
	}
	if inv.ID == "" {
		inv.ID = id
	}
	d, err := form.NewEdit(inv)
	if err != nil {
		BadRequestError("This invoice cannot be edited").Write(w)
		return
	}
	s.renderPartial(w, r, NewHTMXResponse(), "invoice_form", formData{
		Draft:  d,
		Return: "/invoice/" + url.PathEscape(id),
	})
}

// handleInvoiceFormOp applies one edit operation to the posted draft and
// renders the form again.
func (s *Server) handleInvoiceFormOp(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("op")
	switch op {
	case opAddItem, opRemoveItem, opRecompute, opUpload:
	default:
		NotFoundError("Unknown form action").Write(w)
		return
	}

	values, ok := s.parseDraftForm(w, r)
	if !ok {
		return
	}
	d, decodeErr := form.Decode(values)
	if isFatalDecodeError(decodeErr) {
		BadRequestError(decodeMessage(decodeErr)).Write(w)
		return
	}
	data := formData{Return: auth.SafeNext(values.Get("return")), Problems: problems(decodeErr)}

	switch op {
	case opAddItem:
		d = d.AddItem()
	case opRemoveItem:
		idx, err := ParseItemIndex(values)
		if err != nil {
			data.Error = "That item no longer exists"
			break
		}
		next, err := d.RemoveItem(idx)
		switch {
		case errors.Is(err, form.ErrLastItem):
			data.Error = "An invoice needs at least one item"
		case err != nil:
			data.Error = "That item no longer exists"
		default:
			d = next
		}
	case opRecompute:
		if decodeErr != nil {
			data.Error = "Fix the invalid numbers before recomputing totals"
			break
		}
		d = d.RecomputeTotals()
	case opUpload:
		file, header, err := BillFile(r)
		if err != nil {
			data.Error = "Choose a bill image to upload"
			break
		}
		defer file.Close()

		inv, err := s.service.UploadBill(r.Context(), header.Filename, file)
		if err != nil {
			if s.sessionRejected(w, r, err) {
				return
			}
			s.logError(r, "Bill upload failed", err, applog.OpUpload, "filename", header.Filename)
			data.Error = api.UserMessage(err)
			break
		}
		d = d.Replace(inv)
		data.Problems = nil
	}

	data.Draft = d
	s.renderPartial(w, r, NewHTMXResponse(), "invoice_form", data)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	s.saveInvoice(w, r, "")
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	s.saveInvoice(w, r, r.PathValue("id"))
}

// saveInvoice validates the posted draft and creates it, or updates the
// invoice id when id is set.
func (s *Server) saveInvoice(w http.ResponseWriter, r *http.Request, id string) {
	values, ok := s.parseDraftForm(w, r)
	if !ok {
		return
	}
	d, decodeErr := form.Decode(values)
	if isFatalDecodeError(decodeErr) {
		BadRequestError(decodeMessage(decodeErr)).Write(w)
		return
	}
	if d.IsEdit() != (id != "") || d.ID != id {
		BadRequestError("The form does not match the invoice being saved").Write(w)
		return
	}

	data := formData{Draft: d, Return: auth.SafeNext(values.Get("return"))}
	if decodeErr != nil {
		data.Problems = problems(decodeErr)
		s.renderPartial(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "invoice_form", data)
		return
	}
	if err := d.Validate(); err != nil {
		data.Problems = problems(err)
		s.renderPartial(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "invoice_form", data)
		return
	}

	var (
		saved     core.Invoice
		err       error
		operation = applog.OpCreate
	)
	if d.IsEdit() {
		operation = applog.OpUpdate
		saved, err = s.service.UpdateInvoice(r.Context(), d.ID, d.Invoice)
	} else {
		saved, err = s.service.CreateInvoice(r.Context(), d.Invoice)
	}
	if err != nil {
		if s.sessionRejected(w, r, err) {
			return
		}
		s.logError(r, "Saving invoice failed", err, operation, applog.FieldInvoiceID, d.ID)
		data.Error = api.UserMessage(err)
		s.renderPartial(w, r, NewHTMXResponse().Status(http.StatusBadGateway), "invoice_form", data)
		return
	}

	applog.NewStructuredLogger(s.reqLogger(r)).LogInvoiceChanged(r.Context(), operation,
		saved.ID, core.StringValue(saved.InvoiceNumber), core.StringValue(saved.VendorName), saved.Net())

	target := data.Return
	if saved.ID != "" {
		target = "/invoice/" + url.PathEscape(saved.ID)
	}
	if !isHTMX(r) {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	NewHTMXResponse().TriggerInvoiceSaved(saved.ID).Redirect(target).Write(w)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteInvoice(r.Context(), id, nil); err != nil {
		s.fragmentError(w, r, err, applog.OpDelete)
		return
	}
	applog.NewStructuredLogger(s.reqLogger(r)).LogInvoiceChanged(r.Context(), applog.OpDelete, id, "", "", 0)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	b := NewHTMXResponse().
		TriggerInvoiceDeleted(id).
		TriggerSuccessNotification("Invoice deleted")
	// The detail page of a deleted invoice is gone; lists just reload.
	if currentPath(r) == "/invoice/"+url.PathEscape(id) {
		b.Redirect("/")
	} else {
		b.Refresh()
	}
	b.Write(w)
}

// handleInvoicePDF renders a printable copy of an invoice.
func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failPage(w, r, "invoice_detail", s.newView(r, "Invoice"), err)
		return
	}
	body, err := pdf.Bytes(inv)
	if err != nil {
		s.logError(r, "PDF rendering failed", err, applog.OpRender, applog.FieldInvoiceID, inv.ID)
		http.Error(w, "Failed to render PDF", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": pdf.Filename(inv)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

// handleExport streams the spreadsheet export of the page at ?path=. On
// failure the browser goes back to that page, which then shows an alert.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	dl, target, err := s.exporter.Export(r.Context(), path)
	if s.metrics != nil {
		s.metrics.ObserveExport(string(target.Kind), err)
	}
	if err != nil {
		if s.sessionRejected(w, r, err) {
			return
		}
		s.reqLogger(r).WithComponent(applog.ComponentExport).WarnContext(r.Context(), "Export failed",
			applog.FieldPath, path,
			applog.FieldExportKind, string(target.Kind),
			applog.FieldError, err.Error())
		http.Redirect(w, r, withExportError(auth.SafeNext(path)), http.StatusSeeOther)
		return
	}

	ct := dl.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Body)))
	_, _ = w.Write(dl.Body)
}

func withExportError(path string) string {
	if strings.Contains(path, "?") {
		return path + "&export_error=1"
	}
	return path + "?export_error=1"
}

// parseDraftForm parses the posted form, answering the request itself when
// that fails.
func (s *Server) parseDraftForm(w http.ResponseWriter, r *http.Request) (url.Values, bool) {
	values, err := ParseInvoiceForm(w, r, s.uploadMaxBytes)
	if err == nil {
		return values, true
	}
	if errors.Is(err, errUploadLarge) {
		const msg = "The upload is too large"
		ErrorResponse(http.StatusRequestEntityTooLarge, msg).TriggerErrorNotification(msg).Write(w)
		return nil, false
	}
	BadRequestError("Invalid form submission").Write(w)
	return nil, false
}

// fragmentError answers an htmx request whose API call failed.
func (s *Server) fragmentError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if s.sessionRejected(w, r, err) {
		return
	}
	if errors.Is(err, api.ErrNotFound) {
		const msg = "Invoice not found"
		NotFoundError(msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	s.logError(r, "Invoice request failed", err, operation, applog.FieldPath, r.URL.Path)
	msg := api.UserMessage(err)
	ErrorResponse(http.StatusBadGateway, msg).TriggerErrorNotification(msg).Write(w)
}

func isFatalDecodeError(err error) bool {
	return errors.Is(err, form.ErrMissingID) || errors.Is(err, form.ErrTooManyItems)
}

func decodeMessage(err error) string {
	if errors.Is(err, form.ErrTooManyItems) {
		return "Too many items in one invoice"
	}
	return "The form is missing the invoice being edited"
}

// problems flattens decode and validation errors into display lines.
func problems(err error) []string {
	if err == nil {
		return nil
	}
	var ve *form.ValidationError
	if errors.As(err, &ve) {
		return ve.Problems
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
