package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Op names one API operation.
type Op string

const (
	OpLogin          Op = "login"
	OpUpload         Op = "upload bill"
	OpCreateInvoice  Op = "create invoice"
	OpGetInvoice     Op = "get invoice"
	OpUpdateInvoice  Op = "update invoice"
	OpDeleteInvoice  Op = "delete invoice"
	OpSearchInvoices Op = "search invoices"
	OpAllInvoices    Op = "list all invoices"
	OpYearlyReport   Op = "yearly report"
	OpVendorReport   Op = "vendor report"
	OpExportYearly   Op = "export yearly"
	OpExportYV       Op = "export by year and vendor"
	OpExportDetails  Op = "export invoice details"
	OpExportAll      Op = "export all summary"
	OpExportExcel    Op = "export excel"
)

// messages are the user-facing texts shown when an operation fails.
var messages = map[Op]string{
	OpLogin:          "Login failed",
	OpUpload:         "Failed to upload bill",
	OpCreateInvoice:  "Failed to create invoice",
	OpGetInvoice:     "Failed to fetch invoice",
	OpUpdateInvoice:  "Failed to update invoice",
	OpDeleteInvoice:  "Failed to delete invoice",
	OpSearchInvoices: "Failed to fetch invoices",
	OpAllInvoices:    "Failed to fetch invoices",
	OpYearlyReport:   "Failed to fetch yearly report",
	OpVendorReport:   "Failed to fetch vendor report",
	OpExportYearly:   "Failed to export yearly summary",
	OpExportYV:       "Failed to export invoices",
	OpExportDetails:  "Failed to export invoice details",
	OpExportAll:      "Failed to export invoices",
	OpExportExcel:    "Failed to export to Excel",
}

// Message returns the user-facing failure text of op.
func (op Op) Message() string {
	if m, ok := messages[op]; ok {
		return m
	}
	return "Request failed"
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrNoToken      = errors.New("no token returned")
)

// StatusError is returned for failed API calls. StatusCode is 0 when the
// request never got a response; Err then holds the transport error.
type StatusError struct {
	Op         Op
	StatusCode int
	// Message is safe to show to the user.
	Message string
	// Detail is the server's own error text, when it sent one.
	Detail string
	Err    error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrUnauthorized and ErrNotFound by status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

func newStatusError(op Op, resp *http.Response) *StatusError {
	e := &StatusError{Op: op, StatusCode: resp.StatusCode, Message: op.Message()}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		e.Detail = strings.TrimSpace(body.Error)
		if e.Detail == "" {
			e.Detail = strings.TrimSpace(body.Message)
		}
	}
	// Login surfaces the server's own reason.
	if op == OpLogin && e.Detail != "" {
		e.Message = e.Detail
	}
	return e
}

// UserMessage extracts a message fit for display from any client error.
func UserMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	if errors.Is(err, ErrNoToken) {
		return "No token returned"
	}
	return "Something went wrong. Please try again."
}
