package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"invoicedesk/internal/core"
	"invoicedesk/internal/form"
)

// renderer holds one template set per page, each sharing the layout and
// the partials, plus the bare partial set used for htmx fragments.
type renderer struct {
	pages    map[string]*template.Template
	partials *template.Template
}

func parseTemplates(assets fs.FS) (*renderer, error) {
	base, err := template.New("").Funcs(templateFuncs()).ParseFS(assets,
		"templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(assets, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}

	r := &renderer{pages: make(map[string]*template.Template, len(files)), partials: base}
	for _, file := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(assets, file); err != nil {
			return nil, err
		}
		r.pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return r, nil
}

// page renders a full page into memory first so a template error never
// leaves a half-written response.
func (r *renderer) page(name string, data any) ([]byte, error) {
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render page %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (r *renderer) partial(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render partial %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"rupees":      rupees,
		"date":        core.FormatInvoiceDate,
		"dateInput":   core.DateInputValue,
		"str":         core.StringValue,
		"num":         core.FormatNumber,
		"numInput":    numInput,
		"itemField":   form.ItemField,
		"totalsField": form.TotalsField,
		"pathEscape":  url.PathEscape,
		"inc":         func(i int) int { return i + 1 },
		"dec":         func(i int) int { return i - 1 },
	}
}

func rupees(v any) string {
	switch a := v.(type) {
	case *float64:
		return core.FormatRupees(a)
	case float64:
		return core.FormatRupeesValue(a)
	case int:
		return core.FormatRupeesValue(float64(a))
	}
	return core.FormatRupees(nil)
}

// numInput renders a number for an <input>: plain digits, blank when unset.
func numInput(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// view is the data every full page renders with.
type view struct {
	Title       string
	User        string
	Path        string
	ExportURL   string
	ExportError bool
	// Error replaces the page body with an inline error and a retry link.
	Error    string
	RetryURL string
	// RequestID lets a user quote the failed request when reporting it.
	RequestID string
	Data      any
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	body, err := s.views.page(name, v)
	if err != nil {
		s.logError(r, "Template execution failed", err, "render", "template", name)
		http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.views.partial(name, data)
	if err != nil {
		s.logError(r, "Template execution failed", err, "render", "template", name)
		InternalServerError("Something went wrong. Please try again.").Write(w)
		return
	}
	b.BodyHTML(string(body)).Write(w)
}
