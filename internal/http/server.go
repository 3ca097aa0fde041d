package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"invoicedesk/internal/api"
	"invoicedesk/internal/auth"
	"invoicedesk/internal/core"
	"invoicedesk/internal/export"
	applog "invoicedesk/internal/log"
	"invoicedesk/internal/metrics"
	"invoicedesk/internal/middleware/ratelimit"
	"invoicedesk/internal/middleware/security"
	"invoicedesk/internal/middleware/trace"
	appweb "invoicedesk/web"
)

// InvoiceService is what the handlers need from the invoice layer.
type InvoiceService interface {
	YearlyReport(ctx context.Context) ([]core.YearlyReport, error)
	VendorReport(ctx context.Context, year int) ([]core.VendorReport, error)
	SearchInvoices(ctx context.Context, year int, vendor string) ([]core.Invoice, error)
	AllInvoices(ctx context.Context, page, limit int) (core.AllInvoicesPage, error)
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	UploadBill(ctx context.Context, filename string, file io.Reader) (core.Invoice, error)
	CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, inv core.Invoice) (core.Invoice, error)
	DeleteInvoice(ctx context.Context, id string, before *core.Invoice) error
}

// Exporter turns an application path into a spreadsheet download.
type Exporter interface {
	Export(ctx context.Context, path string) (*api.Download, export.Target, error)
}

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options wires a Server.
type Options struct {
	Addr           string
	Service        InvoiceService
	Exporter       Exporter
	Auth           *auth.Manager
	Logger         *applog.Logger
	Metrics        *metrics.Metrics
	ReadyChecks    []ReadyCheck
	PageLimit      int
	UploadMaxBytes int64
	RateLimit      int
	TrustedProxies []string
	// Templates overrides the embedded web assets; tests leave it nil.
	Templates fs.FS
}

type Server struct {
	http.Server
	logger   *applog.Logger
	service  InvoiceService
	exporter Exporter
	auth     *auth.Manager
	metrics  *metrics.Metrics
	views    *renderer
	limiter  *ratelimit.Limiter
	detector *security.Detector
	ready    []ReadyCheck
	started  time.Time

	pageLimit      int
	uploadMaxBytes int64

	shutdownOnce sync.Once
}

// NewServer parses the templates and configures routes and middleware,
// returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Service == nil || opts.Exporter == nil || opts.Auth == nil {
		return nil, errors.New("http server needs a service, an exporter and an auth manager")
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 10
	}
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = 10 << 20
	}
	assets := opts.Templates
	if assets == nil {
		assets = appweb.FS
	}

	views, err := parseTemplates(assets)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	detector := security.NewDetector(opts.Logger)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		logger:         logger,
		service:        opts.Service,
		exporter:       opts.Exporter,
		auth:           opts.Auth,
		metrics:        opts.Metrics,
		views:          views,
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit}),
		detector:       detector,
		ready:          opts.ReadyChecks,
		started:        time.Now(),
		pageLimit:      opts.PageLimit,
		uploadMaxBytes: opts.UploadMaxBytes,
	}

	mux := http.NewServeMux()
	if err := s.routes(mux, assets); err != nil {
		s.limiter.Stop()
		return nil, err
	}

	// The metrics middleware sits directly on the mux so it sees the
	// matched pattern of the request the mux served.
	var handler http.Handler = mux
	if s.metrics != nil {
		handler = s.metrics.Middleware(handler)
	}
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(handler)
	handler = trace.NewMiddleware(opts.Logger.WithComponent(applog.ComponentTrace), s.detector.ExtractClientIP).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux, assets fs.FS) error {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.auth.RequireAuth(h))
	}

	// Pages
	private("GET /{$}", s.handleDashboard)
	private("GET /vendors/{year}", s.handleVendors)
	private("GET /invoices/{year}/{vendor}", s.handleInvoiceList)
	private("GET /invoice/{id}", s.handleInvoiceDetail)
	private("GET /invoice/{id}/pdf", s.handleInvoicePDF)
	private("GET /all-invoices", s.handleAllInvoices)
	private("GET /export", s.handleExport)

	// Invoice form partials
	private("GET /ui/invoice-form/new", s.handleNewInvoiceForm)
	private("GET /ui/invoice-form/{id}/edit", s.handleEditInvoiceForm)
	private("POST /ui/invoice-form/{op}", s.handleInvoiceFormOp)

	// Mutations
	private("POST /invoices", s.handleCreateInvoice)
	private("PUT /invoices/{id}", s.handleUpdateInvoice)
	private("DELETE /invoices/{id}", s.handleDeleteInvoice)

	mux.HandleFunc("/", s.handleNotFound)
	return nil
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady probes every registered dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{"templates": "ok"}
	for _, rc := range s.ready {
		if err := rc.Check(ctx); err != nil {
			checks[rc.Name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[rc.Name] = "ok"
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"rejected":       s.limiter.GetMetrics().TotalHits,
	}
	checks["security"] = s.detector.GetMetrics()

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.reqLogger(r).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	const msg = "Too many requests. Please wait a moment and try again."
	if isHTMX(r) {
		ErrorResponse(http.StatusTooManyRequests, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	http.Error(w, msg, http.StatusTooManyRequests)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
