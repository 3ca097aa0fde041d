package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"invoicedesk/internal/sheets"
)

// Store is an in-process ledger, used when no spreadsheet is configured
// and in tests.
type Store struct {
	mu    sync.Mutex
	order []string
	rows  map[string]sheets.LedgerRow
}

var _ sheets.Ledger = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[string]sheets.LedgerRow)}
}

// Upsert stores the row and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, row sheets.LedgerRow) (string, error) {
	id := strings.TrimSpace(row.InvoiceID)
	if id == "" {
		return "", sheets.ErrEmptyInvoiceID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		s.order = append(s.order, id)
	}
	s.rows[id] = row
	return fmt.Sprintf("mem:%d", s.indexLocked(id)+1), nil
}

func (s *Store) Remove(_ context.Context, invoiceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[invoiceID]; !ok {
		return false, nil
	}
	delete(s.rows, invoiceID)
	if i := s.indexLocked(invoiceID); i >= 0 {
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
	return true, nil
}

// List returns rows in insertion order.
func (s *Store) List(_ context.Context) ([]sheets.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.LedgerRow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out, nil
}

func (s *Store) indexLocked(id string) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}
