package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	ports "invoicedesk/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheet serves the handful of Sheets values endpoints the client uses.
type fakeSheet struct {
	mu    sync.Mutex
	rows  [][]any
	calls []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	f.calls = append(f.calls, r.Method+" "+rng)

	switch {
	case r.Method == http.MethodGet:
		var values [][]any
		for _, row := range f.rows {
			if strings.HasSuffix(rng, "A:A") {
				if len(row) == 0 {
					values = append(values, []any{})
				} else {
					values = append(values, []any{row[0]})
				}
				continue
			}
			values = append(values, row)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "majorDimension": "ROWS", "values": values})
	case r.Method == http.MethodPut:
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := rowNumber(rng)
		for len(f.rows) < n {
			f.rows = append(f.rows, []any{})
		}
		f.rows[n-1] = body.Values[0]
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		n := rowNumber(strings.TrimSuffix(rng, ":clear"))
		if n <= len(f.rows) {
			f.rows[n-1] = []any{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})
	default:
		http.Error(w, "unexpected call", http.StatusBadRequest)
	}
}

// rowNumber extracts 3 from "Invoices!A3:I3".
func rowNumber(rng string) int {
	_, cells, _ := strings.Cut(rng, "!A")
	digits, _, _ := strings.Cut(cells, ":")
	n, _ := strconv.Atoi(digits)
	return n
}

func newTestClient(t *testing.T, fake *fakeSheet) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertWritesHeaderThenRows(t *testing.T) {
	fake := &fakeSheet{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	ref, err := c.Upsert(ctx, ports.LedgerRow{InvoiceID: "a", Vendor: "Acme", Year: 2024, NetAmount: 118})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ref != "Invoices!A2:I2" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if !isHeader(fake.rows[0]) {
		t.Fatalf("expected header row, got %v", fake.rows[0])
	}

	ref, _ = c.Upsert(ctx, ports.LedgerRow{InvoiceID: "b"})
	if ref != "Invoices!A3:I3" {
		t.Fatalf("second row ref %q", ref)
	}

	ref, _ = c.Upsert(ctx, ports.LedgerRow{InvoiceID: "a", Vendor: "Acme", NetAmount: 200})
	if ref != "Invoices!A2:I2" {
		t.Fatalf("update should rewrite row 2, got %q", ref)
	}

	rows, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 || rows[0].NetAmount != 200 || rows[1].InvoiceID != "b" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestRemoveClearsRow(t *testing.T) {
	fake := &fakeSheet{}
	c := newTestClient(t, fake)
	ctx := context.Background()
	_, _ = c.Upsert(ctx, ports.LedgerRow{InvoiceID: "a"})
	_, _ = c.Upsert(ctx, ports.LedgerRow{InvoiceID: "b"})

	removed, err := c.Remove(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}
	removed, err = c.Remove(ctx, "missing")
	if err != nil || removed {
		t.Fatalf("remove missing: removed=%v err=%v", removed, err)
	}

	rows, _ := c.List(ctx)
	if len(rows) != 1 || rows[0].InvoiceID != "b" {
		t.Fatalf("unexpected rows after remove: %+v", rows)
	}

	ref, _ := c.Upsert(ctx, ports.LedgerRow{InvoiceID: "c"})
	if ref != "Invoices!A4:I4" {
		t.Fatalf("new rows go after cleared ones, got %q", ref)
	}
}

func TestUpsertRejectsEmptyID(t *testing.T) {
	c := &Client{}
	if _, err := c.Upsert(context.Background(), ports.LedgerRow{}); !errors.Is(err, ports.ErrEmptyInvoiceID) {
		t.Fatalf("expected ErrEmptyInvoiceID, got %v", err)
	}
}

func TestEncodeDecodeRow(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := ports.LedgerRow{
		InvoiceID: "x", InvoiceNumber: "INV-9", InvoiceDate: "2024-02-28",
		Vendor: "Acme", Year: 2024, NetAmount: 1234.5,
		LastAction: "updated", UpdatedBy: "alice", UpdatedAt: at,
	}
	out, ok := decodeRow(encodeRow(in))
	if !ok || !out.UpdatedAt.Equal(at) {
		t.Fatalf("decoded %+v, want %+v", out, in)
	}
	out.UpdatedAt = at
	if out != in {
		t.Fatalf("decoded %+v, want %+v", out, in)
	}
	if _, ok := decodeRow([]any{}); ok {
		t.Fatalf("cleared row must not decode")
	}
}

func TestFindRow(t *testing.T) {
	ids := [][]any{{"Invoice ID"}, {}, {"b"}, {" a "}}
	if got := findRow(ids, "a"); got != 4 {
		t.Fatalf("findRow a = %d", got)
	}
	if got := findRow(ids, "z"); got != 0 {
		t.Fatalf("findRow z = %d", got)
	}
}
