package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"invoicedesk/internal/api"
	"invoicedesk/internal/auth"
	"invoicedesk/internal/core"
	"invoicedesk/internal/export"
	applog "invoicedesk/internal/log"
)

type fakeService struct {
	mu       sync.Mutex
	years    []core.YearlyReport
	invoice  core.Invoice
	err      error
	created  []core.Invoice
	updated  map[string]core.Invoice
	deleted  []string
	uploaded core.Invoice
}

func (f *fakeService) YearlyReport(context.Context) ([]core.YearlyReport, error) {
	return f.years, f.err
}

func (f *fakeService) VendorReport(context.Context, int) ([]core.VendorReport, error) {
	return []core.VendorReport{{Vendor: "Acme Traders", PurchaseAmount: 1200}}, f.err
}

func (f *fakeService) SearchInvoices(context.Context, int, string) ([]core.Invoice, error) {
	return []core.Invoice{f.invoice}, f.err
}

func (f *fakeService) AllInvoices(_ context.Context, page, limit int) (core.AllInvoicesPage, error) {
	return core.AllInvoicesPage{
		Data: []core.AllInvoiceRecord{{InvoiceID: "a1", InvoiceNumber: core.StringPtr("INV-7")}},
		Pagination: core.Pagination{
			CurrentPage: page, Limit: limit, TotalRecords: 25, TotalPages: 3,
		},
	}, f.err
}

func (f *fakeService) GetInvoice(_ context.Context, id string) (core.Invoice, error) {
	if f.err != nil {
		return core.Invoice{}, f.err
	}
	inv := f.invoice.Clone()
	inv.ID = id
	return inv, nil
}

func (f *fakeService) UploadBill(context.Context, string, io.Reader) (core.Invoice, error) {
	return f.uploaded, f.err
}

func (f *fakeService) CreateInvoice(_ context.Context, inv core.Invoice) (core.Invoice, error) {
	if f.err != nil {
		return core.Invoice{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, inv)
	inv.ID = "new-id"
	return inv, nil
}

func (f *fakeService) UpdateInvoice(_ context.Context, id string, inv core.Invoice) (core.Invoice, error) {
	if f.err != nil {
		return core.Invoice{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[string]core.Invoice{}
	}
	f.updated[id] = inv
	inv.ID = id
	return inv, nil
}

func (f *fakeService) DeleteInvoice(_ context.Context, id string, _ *core.Invoice) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeExporter struct {
	err error
}

func (f fakeExporter) Export(_ context.Context, path string) (*api.Download, export.Target, error) {
	target, _ := export.Resolve(path)
	if f.err != nil {
		return nil, target, f.err
	}
	return &api.Download{
		Filename:    "yearly-summary.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body:        []byte("xlsx"),
	}, target, nil
}

type fakeAuthn struct {
	err error
}

func (f fakeAuthn) Login(context.Context, string, string) (string, error) {
	return "token", f.err
}

type testEnv struct {
	srv   *Server
	svc   *fakeService
	store *auth.MemoryStore
}

func newTestEnv(t *testing.T, svc *fakeService, exp fakeExporter, authn fakeAuthn) *testEnv {
	t.Helper()
	store := auth.NewMemoryStore()
	mgr := auth.NewManager(store, authn, auth.Options{TTL: time.Hour, Logger: applog.Discard()})
	srv, err := NewServer(Options{
		Addr:     ":0",
		Service:  svc,
		Exporter: exp,
		Auth:     mgr,
		Logger:   applog.Discard(),
		ReadyChecks: []ReadyCheck{{
			Name:  "sessions",
			Check: func(context.Context) error { return nil },
		}},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, svc: svc, store: store}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// signIn logs in through the real form and returns the session cookie.
func (e *testEnv) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := e.do(req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("login did not set a session cookie")
	return nil
}

func authed(req *http.Request, c *http.Cookie) *http.Request {
	req.AddCookie(c)
	return req
}

func htmx(req *http.Request) *http.Request {
	req.Header.Set("HX-Request", "true")
	return req
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func sampleInvoice() core.Invoice {
	return core.Invoice{
		InvoiceNumber: core.StringPtr("INV-42"),
		InvoiceDate:   core.StringPtr("2024-03-15"),
		VendorName:    core.StringPtr("Acme Traders"),
		Items: []core.InvoiceItem{{
			ItemName: core.StringPtr("Cement"),
			Quantity: core.FloatPtr(10),
			Amount:   core.FloatPtr(3500),
		}},
		Totals: core.InvoiceTotals{NetAmount: core.FloatPtr(4130)},
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s content type=%q", path, ct)
		}
	}
}

func TestReadyFailsWhenCheckFails(t *testing.T) {
	store := auth.NewMemoryStore()
	srv, err := NewServer(Options{
		Service:  &fakeService{},
		Exporter: fakeExporter{},
		Auth:     auth.NewManager(store, fakeAuthn{}, auth.Options{Logger: applog.Discard()}),
		Logger:   applog.Discard(),
		ReadyChecks: []ReadyCheck{{
			Name:  "redis",
			Check: func(context.Context) error { return errors.New("connection refused") },
		}},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("body should name the failure: %s", rr.Body.String())
	}
}

func TestUnauthenticatedRequestsGoToLogin(t *testing.T) {
	env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/vendors/2024", nil))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status=%d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login?next=%2Fvendors%2F2024" {
		t.Fatalf("location=%q", loc)
	}

	rr = env.do(htmx(httptest.NewRequest(http.MethodDelete, "/invoices/abc", nil)))
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("HX-Redirect") != "/login" {
		t.Fatalf("htmx: status=%d HX-Redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})

	rr := env.do(httptest.NewRequest(http.MethodGet, "/login?next=/all-invoices", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `name="password"`) {
		t.Fatalf("login page status=%d", rr.Code)
	}

	form := url.Values{"username": {"alice"}, "password": {"pw"}, "next": {"/all-invoices"}}
	rr = env.do(formRequest(http.MethodPost, "/login", form))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/all-invoices" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if env.store.Len() != 1 {
		t.Fatalf("sessions=%d, want 1", env.store.Len())
	}

	// A next that a browser would read as another host must not leave the site.
	for _, next := range []string{"https://evil.example", "/\t/evil.example", "/\n/evil.example"} {
		form.Set("next", next)
		rr = env.do(formRequest(http.MethodPost, "/login", form))
		if rr.Header().Get("Location") != "/" {
			t.Fatalf("next=%q: location=%q, want /", next, rr.Header().Get("Location"))
		}
	}
}

func TestLoginPageRedirectsSignedInUserLocally(t *testing.T) {
	env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	tests := []struct {
		target   string
		location string
	}{
		{"/login?next=%2Fall-invoices", "/all-invoices"},
		{"/login?next=/%09/evil.example", "/"},
		{"/login?next=/%0A/evil.example", "/"},
		{"/login?next=%2F%5Cevil.example", "/"},
	}
	for _, tt := range tests {
		rr := env.do(authed(httptest.NewRequest(http.MethodGet, tt.target, nil), cookie))
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("%s: status=%d", tt.target, rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != tt.location {
			t.Fatalf("%s: location=%q, want %q", tt.target, loc, tt.location)
		}
	}
}

func TestLoginErrors(t *testing.T) {
	tests := []struct {
		name     string
		authnErr error
		form     url.Values
		status   int
		message  string
	}{
		{
			name:    "missing password",
			form:    url.Values{"username": {"alice"}},
			status:  http.StatusBadRequest,
			message: "Username and password are required",
		},
		{
			name:     "rejected credentials",
			authnErr: &api.StatusError{Op: api.OpLogin, StatusCode: 401, Message: "Invalid credentials"},
			form:     url.Values{"username": {"alice"}, "password": {"bad"}},
			status:   http.StatusUnauthorized,
			message:  "Invalid credentials",
		},
		{
			name:     "api unreachable",
			authnErr: &api.StatusError{Op: api.OpLogin, Message: "Login failed", Err: errors.New("dial tcp")},
			form:     url.Values{"username": {"alice"}, "password": {"pw"}},
			status:   http.StatusBadGateway,
			message:  "Login failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{err: tt.authnErr})
			rr := env.do(formRequest(http.MethodPost, "/login", tt.form))
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d", rr.Code, tt.status)
			}
			if !strings.Contains(rr.Body.String(), tt.message) {
				t.Fatalf("body missing %q", tt.message)
			}
			if env.store.Len() != 0 {
				t.Fatalf("no session should be stored")
			}
		})
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	rr := env.do(authed(httptest.NewRequest(http.MethodPost, "/logout", nil), cookie))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if env.store.Len() != 0 {
		t.Fatalf("session not removed")
	}
}

func TestDashboardRenders(t *testing.T) {
	svc := &fakeService{years: []core.YearlyReport{{Year: 2023, PurchaseAmount: 900}, {Year: 2024, PurchaseAmount: 1500}}}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/", nil), cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{`href="/vendors/2024"`, `href="/export?path=%2f"`, "alice"} {
		if !strings.Contains(strings.ToLower(body), strings.ToLower(want)) {
			t.Fatalf("body missing %s", want)
		}
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("pages must not be cached")
	}
}

func TestPagesRender(t *testing.T) {
	svc := &fakeService{invoice: sampleInvoice()}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	tests := []struct {
		path string
		want string
	}{
		{"/vendors/2024", `/invoices/2024/Acme%20Traders`},
		{"/invoices/2024/Acme%20Traders", "INV-42"},
		{"/invoice/abc", "Cement"},
		{"/all-invoices?page=2", "Showing 11 to 20 of 25"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(authed(httptest.NewRequest(http.MethodGet, tt.path, nil), cookie))
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Fatalf("body missing %q", tt.want)
			}
		})
	}
}

func TestPageShowsAPIFailureWithRetry(t *testing.T) {
	svc := &fakeService{err: &api.StatusError{Op: api.OpYearlyReport, StatusCode: 500, Message: "Failed to fetch yearly report"}}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/", nil), cookie))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Failed to fetch yearly report") || !strings.Contains(body, "Try Again") {
		t.Fatalf("body missing error block: %s", body)
	}
}

func TestRejectedTokenSignsOut(t *testing.T) {
	svc := &fakeService{}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)
	svc.err = &api.StatusError{Op: api.OpYearlyReport, StatusCode: 401, Message: "Failed to fetch yearly report"}

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/", nil), cookie))
	if rr.Code != http.StatusSeeOther || !strings.HasPrefix(rr.Header().Get("Location"), "/login") {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if env.store.Len() != 0 {
		t.Fatalf("rejected session should be removed")
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	for _, path := range []string{"/nope", "/vendors/20x4"} {
		rr := env.do(authed(httptest.NewRequest(http.MethodGet, path, nil), cookie))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestExport(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})
		cookie := env.signIn(t)

		rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/export?path=%2F", nil), cookie))
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename=yearly-summary.xlsx` {
			t.Fatalf("content disposition=%q", cd)
		}
		if rr.Body.String() != "xlsx" {
			t.Fatalf("body=%q", rr.Body.String())
		}
	})

	t.Run("failure returns to the page with an alert", func(t *testing.T) {
		exp := fakeExporter{err: &api.StatusError{Op: api.OpExportAll, StatusCode: 500, Message: "Failed to export invoices"}}
		env := newTestEnv(t, &fakeService{}, exp, fakeAuthn{})
		cookie := env.signIn(t)

		rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/export?path=%2Fall-invoices", nil), cookie))
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("status=%d", rr.Code)
		}
		loc := rr.Header().Get("Location")
		if loc != "/all-invoices?export_error=1" {
			t.Fatalf("location=%q", loc)
		}

		rr = env.do(authed(httptest.NewRequest(http.MethodGet, loc, nil), cookie))
		if !strings.Contains(rr.Body.String(), "Failed to export data") {
			t.Fatalf("page should show the export alert")
		}
	})

	t.Run("vendor with a slash keeps its escaping", func(t *testing.T) {
		exp := fakeExporter{err: &api.StatusError{Op: api.OpExportYV, StatusCode: 500, Message: "Failed to export invoices"}}
		env := newTestEnv(t, &fakeService{}, exp, fakeAuthn{})
		cookie := env.signIn(t)

		rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/invoices/2024/A%2FB", nil), cookie))
		if rr.Code != http.StatusOK {
			t.Fatalf("list status=%d", rr.Code)
		}
		if body := strings.ToLower(rr.Body.String()); !strings.Contains(body, "path=%2finvoices%2f2024%2fa%252fb") {
			t.Fatalf("export link should carry the escaped path:\n%s", rr.Body.String())
		}

		rr = env.do(authed(httptest.NewRequest(http.MethodGet, "/export?path=%2Finvoices%2F2024%2FA%252FB", nil), cookie))
		if loc := rr.Header().Get("Location"); loc != "/invoices/2024/A%2FB?export_error=1" {
			t.Fatalf("location=%q", loc)
		}
	})
}

func TestInvoiceFormOps(t *testing.T) {
	env := newTestEnv(t, &fakeService{}, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	base := url.Values{
		"mode":                        {"create"},
		"vendor_name":                 {"Acme Traders"},
		"items[0][item_name]":         {"Cement"},
		"items[0][quantity]":          {"2"},
		"items[0][rate_per_quantity]": {"500"},
		"items[0][cgst_percent]":      {"9"},
	}

	rr := env.do(authed(htmx(formRequest(http.MethodPost, "/ui/invoice-form/add-item", base)), cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("add-item status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "items[1][item_name]") {
		t.Fatalf("add-item should render a second row")
	}

	remove := url.Values{}
	for k, v := range base {
		remove[k] = v
	}
	remove.Set("index", "0")
	rr = env.do(authed(htmx(formRequest(http.MethodPost, "/ui/invoice-form/remove-item", remove)), cookie))
	if !strings.Contains(rr.Body.String(), "An invoice needs at least one item") {
		t.Fatalf("removing the last item should be refused")
	}

	rr = env.do(authed(htmx(formRequest(http.MethodPost, "/ui/invoice-form/recompute", base)), cookie))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `value="1000"`) {
		t.Fatalf("recompute should fill the total amount: %s", rr.Body.String())
	}

	rr = env.do(authed(htmx(formRequest(http.MethodPost, "/ui/invoice-form/explode", base)), cookie))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown op status=%d", rr.Code)
	}
}

func TestInvoiceFormUpload(t *testing.T) {
	extracted := sampleInvoice()
	env := newTestEnv(t, &fakeService{uploaded: extracted}, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("mode", "create")
	_ = mw.WriteField("items[0][item_name]", "")
	fw, _ := mw.CreateFormFile("bill", "bill.jpg")
	_, _ = fw.Write([]byte("jpeg"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ui/invoice-form/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := env.do(authed(htmx(req), cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{`value="INV-42"`, `value="Cement"`, `value="create"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("upload should fill the form, missing %s", want)
		}
	}

	rr = env.do(authed(htmx(formRequest(http.MethodPost, "/ui/invoice-form/upload", url.Values{"mode": {"create"}})), cookie))
	if !strings.Contains(rr.Body.String(), "Choose a bill image to upload") {
		t.Fatalf("missing file should be reported")
	}
}

func TestCreateInvoice(t *testing.T) {
	svc := &fakeService{}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	form := url.Values{
		"mode":                {"create"},
		"invoice_number":      {"INV-1"},
		"vendor_name":         {"Acme Traders"},
		"items[0][item_name]": {"Cement"},
		"items[0][quantity]":  {"2"},
	}
	rr := env.do(authed(htmx(formRequest(http.MethodPost, "/invoices", form)), cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("HX-Redirect") != "/invoice/new-id" {
		t.Fatalf("HX-Redirect=%q", rr.Header().Get("HX-Redirect"))
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "invoice:saved") {
		t.Fatalf("missing invoice:saved trigger")
	}
	if len(svc.created) != 1 || core.StringValue(svc.created[0].InvoiceNumber) != "INV-1" {
		t.Fatalf("created=%+v", svc.created)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc := &fakeService{}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	tests := []struct {
		name string
		qty  string
	}{
		{"negative quantity", "-1"},
		{"not a number", "ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{
				"mode":                {"create"},
				"items[0][item_name]": {"Cement"},
				"items[0][quantity]":  {tt.qty},
			}
			rr := env.do(authed(htmx(formRequest(http.MethodPost, "/invoices", form)), cookie))
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), `class="problems"`) {
				t.Fatalf("form should list the problems")
			}
		})
	}
	if len(svc.created) != 0 {
		t.Fatalf("invalid drafts must not reach the API")
	}
}

func TestUpdateInvoice(t *testing.T) {
	svc := &fakeService{}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	form := url.Values{
		"mode":                {"edit"},
		"id":                  {"abc"},
		"items[0][item_name]": {"Steel"},
	}
	rr := env.do(authed(formRequest(http.MethodPut, "/invoices/abc", form), cookie))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/invoice/abc" {
		t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
	if _, ok := svc.updated["abc"]; !ok {
		t.Fatalf("invoice abc not updated")
	}

	form.Set("id", "other")
	rr = env.do(authed(htmx(formRequest(http.MethodPut, "/invoices/abc", form)), cookie))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("mismatched id status=%d", rr.Code)
	}
}

func TestSaveInvoiceAPIFailure(t *testing.T) {
	svc := &fakeService{err: &api.StatusError{Op: api.OpCreateInvoice, StatusCode: 500, Message: "Failed to create invoice"}}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	form := url.Values{"mode": {"create"}, "items[0][item_name]": {"Cement"}}
	rr := env.do(authed(htmx(formRequest(http.MethodPost, "/invoices", form)), cookie))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Failed to create invoice") {
		t.Fatalf("form should show the API error")
	}
}

func TestDeleteInvoice(t *testing.T) {
	tests := []struct {
		name       string
		currentURL string
		header     string
		value      string
	}{
		{"from detail page", "http://example.com/invoice/abc", "HX-Redirect", "/"},
		{"from list", "http://example.com/invoices/2024/Acme", "HX-Refresh", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
			cookie := env.signIn(t)

			req := htmx(httptest.NewRequest(http.MethodDelete, "/invoices/abc", nil))
			req.Header.Set("HX-Current-URL", tt.currentURL)
			rr := env.do(authed(req, cookie))
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			if got := rr.Header().Get(tt.header); got != tt.value {
				t.Fatalf("%s=%q, want %q", tt.header, got, tt.value)
			}
			if len(svc.deleted) != 1 || svc.deleted[0] != "abc" {
				t.Fatalf("deleted=%v", svc.deleted)
			}
		})
	}
}

func TestDeleteInvoiceNotFound(t *testing.T) {
	svc := &fakeService{err: &api.StatusError{Op: api.OpDeleteInvoice, StatusCode: 404, Message: "Failed to delete invoice"}}
	env := newTestEnv(t, svc, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	rr := env.do(authed(htmx(httptest.NewRequest(http.MethodDelete, "/invoices/gone", nil)), cookie))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Fatalf("missing error notification")
	}
}

func TestInvoicePDF(t *testing.T) {
	env := newTestEnv(t, &fakeService{invoice: sampleInvoice()}, fakeExporter{}, fakeAuthn{})
	cookie := env.signIn(t)

	rr := env.do(authed(httptest.NewRequest(http.MethodGet, "/invoice/abc/pdf", nil), cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("content type=%q", rr.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Fatalf("body is not a PDF")
	}
}
