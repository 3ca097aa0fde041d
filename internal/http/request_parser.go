// Package http serves the invoicedesk web UI.
//
// This file holds the parsing of path values, query strings and posted
// forms shared by the handlers.

package http

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var (
	errInvalidYear  = errors.New("invalid year")
	errInvalidIndex = errors.New("invalid item index")
	errUploadLarge  = errors.New("upload too large")
	errNoBill       = errors.New("no bill file")
)

// ParseYear parses a {year} path value. Only four-digit years are accepted.
func ParseYear(raw string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || y < 1000 || y > 9999 {
		return 0, fmt.Errorf("%w: %q", errInvalidYear, raw)
	}
	return y, nil
}

// ParsePage reads the 1-based page number from the query string, falling
// back to the first page.
func ParsePage(query url.Values) int {
	p, err := strconv.Atoi(strings.TrimSpace(query.Get("page")))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// ParseItemIndex reads the row a remove-item request targets.
func ParseItemIndex(form url.Values) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(form.Get("index")))
	if err != nil || i < 0 {
		return 0, errInvalidIndex
	}
	return i, nil
}

// ParseInvoiceForm parses a posted invoice form, url-encoded or multipart,
// and returns the posted values with control characters stripped.
func ParseInvoiceForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errUploadLarge
		}
		return nil, fmt.Errorf("parse form: %w", err)
	}

	out := make(url.Values, len(r.PostForm))
	for k, vals := range r.PostForm {
		clean := make([]string, len(vals))
		for i, v := range vals {
			clean[i] = sanitizeInput(v)
		}
		out[k] = clean
	}
	return out, nil
}

// BillFile returns the uploaded bill of a form already parsed by
// ParseInvoiceForm.
func BillFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil, errNoBill
	}
	file, header, err := r.FormFile("bill")
	if err != nil {
		return nil, nil, errNoBill
	}
	if header.Size == 0 {
		file.Close()
		return nil, nil, errNoBill
	}
	return file, header, nil
}
