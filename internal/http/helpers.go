package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"invoicedesk/internal/api"
	"invoicedesk/internal/auth"
	"invoicedesk/internal/export"
	applog "invoicedesk/internal/log"
	"invoicedesk/internal/middleware/trace"
)

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// sanitizeInput removes control characters (except tab and newlines) and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// currentPath is the page the browser shows. htmx reports it in
// HX-Current-URL; plain requests fall back to the Referer.
func currentPath(r *http.Request) string {
	raw := r.Header.Get("HX-Current-URL")
	if raw == "" {
		raw = r.Referer()
	}
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host != "" && u.Host != r.Host {
		return ""
	}
	return u.EscapedPath()
}

// newView starts the page data for r.
func (s *Server) newView(r *http.Request, title string) view {
	v := view{Title: title, Path: r.URL.EscapedPath()}
	if sess, ok := auth.FromContext(r.Context()); ok {
		v.User = sess.Username
	}
	// Escaped so a vendor holding "/" or "?" survives the round trip
	// through the export redirect.
	if _, ok := export.Resolve(v.Path); ok {
		v.ExportURL = "/export?path=" + url.QueryEscape(v.Path)
	}
	v.ExportError = r.URL.Query().Get("export_error") == "1"

	retry := *r.URL
	q := retry.Query()
	q.Del("export_error")
	retry.RawQuery = q.Encode()
	v.RetryURL = retry.RequestURI()
	return v
}

// failPage renders name with an inline error for err. A rejected token
// ends the session instead.
func (s *Server) failPage(w http.ResponseWriter, r *http.Request, name string, v view, err error) {
	if s.sessionRejected(w, r, err) {
		return
	}
	if errors.Is(err, api.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	s.logError(r, "Page data fetch failed", err, applog.OpRead, "page", name)
	v.Error = api.UserMessage(err)
	v.RequestID = trace.GetRequestID(r.Context())
	s.renderPage(w, r, http.StatusBadGateway, name, v)
}

// sessionRejected handles a 401 from the API: the session is dropped and
// the browser is sent to the login page.
func (s *Server) sessionRejected(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, api.ErrUnauthorized) {
		return false
	}
	s.reqLogger(r).WithComponent(applog.ComponentAuth).InfoContext(r.Context(),
		"API rejected session token, signing out", applog.FieldPath, r.URL.Path)
	s.auth.Invalidate(w, r)
	auth.RedirectToLogin(w, r)
	return true
}

func (s *Server) logError(r *http.Request, msg string, err error, operation string, args ...any) {
	fields := applog.NewFields()
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok {
			fields[k] = args[i+1]
		}
	}
	applog.NewStructuredLogger(s.reqLogger(r)).
		LogError(r.Context(), msg, err, applog.ComponentHTTP, operation, fields)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		NotFoundError("Not found").Write(w)
		return
	}
	v := view{Title: "Not found", Path: r.URL.Path}
	if sess, err := s.auth.Current(r); err == nil {
		v.User = sess.Username
	}
	s.renderPage(w, r, http.StatusNotFound, "not_found", v)
}

// reqLogger is the request-scoped logger set by the trace middleware, or
// the server logger when the request did not pass through it.
func (s *Server) reqLogger(r *http.Request) *applog.Logger {
	if l, ok := r.Context().Value(applog.LoggerContextKey).(*applog.Logger); ok {
		return l
	}
	return s.logger
}
