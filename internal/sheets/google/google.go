package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ports "invoicedesk/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Invoices"

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON wins over CredentialsFile. With neither set,
	// GOOGLE_APPLICATION_CREDENTIALS is consulted.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var _ ports.Ledger = (*Client)(nil)

// New creates a ledger client. Extra client options replace the credential
// lookup, which is how tests point the client at a local server.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}

	if len(opts) == 0 {
		credentials, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets ledger ready", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	file := strings.TrimSpace(cfg.CredentialsFile)
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(cfg.CredentialsJSON), nil
	case file == "":
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		if file == "" {
			return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
		}
	}
	slog.InfoContext(ctx, "Reading credentials from file", "path", file)
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// Upsert rewrites the row holding row.InvoiceID in place, or appends one.
// The header is written when the sheet is empty.
func (c *Client) Upsert(ctx context.Context, row ports.LedgerRow) (string, error) {
	if strings.TrimSpace(row.InvoiceID) == "" {
		return "", ports.ErrEmptyInvoiceID
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return "", err
	}

	target := findRow(ids, row.InvoiceID)
	if target == 0 {
		if len(ids) == 0 {
			if err := c.write(ctx, 1, headerRow()); err != nil {
				return "", fmt.Errorf("write header: %w", err)
			}
			ids = append(ids, []any{headerRow()[0]})
		}
		target = len(ids) + 1
	}

	if err := c.write(ctx, target, encodeRow(row)); err != nil {
		return "", err
	}
	return c.rowRange(target), nil
}

// Remove clears the row of invoiceID. Rows are cleared rather than deleted
// so the row numbers of other invoices stay valid.
func (c *Client) Remove(ctx context.Context, invoiceID string) (bool, error) {
	if c.svc == nil {
		return false, errors.New("sheets service not initialized")
	}
	ids, err := c.readIDs(ctx)
	if err != nil {
		return false, err
	}
	target := findRow(ids, invoiceID)
	if target == 0 {
		return false, nil
	}
	rng := c.rowRange(target)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("clear %s: %w", rng, err)
	}
	return true, nil
}

func (c *Client) List(ctx context.Context) ([]ports.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	var out []ports.LedgerRow
	for i, values := range resp.Values {
		if i == 0 && isHeader(values) {
			continue
		}
		row, ok := decodeRow(values)
		if !ok {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (c *Client) readIDs(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet dimensions for %s: %w", c.sheet, err)
	}
	return resp.Values, nil
}

func (c *Client) write(ctx context.Context, rowNum int, values []any) error {
	rng := c.rowRange(rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) rowRange(rowNum int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheet, rowNum, lastColumn, rowNum)
}

// findRow returns the 1-based row holding id in column A, or 0.
func findRow(ids [][]any, id string) int {
	id = strings.TrimSpace(id)
	for i, row := range ids {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}
