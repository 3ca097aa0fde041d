package backend

import (
	"context"

	"invoicedesk/internal/auth"
	"invoicedesk/internal/sheets"
	gsheet "invoicedesk/internal/sheets/google"
	"invoicedesk/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// ReadyFunc reports whether the backing service is reachable.
type ReadyFunc func(ctx context.Context) error

// SessionResult holds the session store and, when events are enabled, the
// outbox sharing its SQLite database.
type SessionResult struct {
	Store   auth.Store
	Outbox  *storage.Outbox
	Ready   ReadyFunc
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateSessions(ctx context.Context, config Config) (*SessionResult, error)
	CreateLedger(ctx context.Context, config Config) (sheets.Ledger, error)
}

// Config holds configuration for backend creation
type Config struct {
	Sessions BackendType
	Ledger   BackendType

	// SQLite specific
	SQLiteDBPath string
	// WithOutbox opens the SQLite event outbox even when sessions live elsewhere.
	WithOutbox bool

	// Redis specific
	RedisURL string

	// Google Sheets specific
	Google gsheet.Config
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValidSessionBackend returns true if bt can hold sessions
func (bt BackendType) IsValidSessionBackend() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, RedisBackend:
		return true
	default:
		return false
	}
}

// IsValidLedgerBackend returns true if bt can hold the ledger
func (bt BackendType) IsValidLedgerBackend() bool {
	switch bt {
	case MemoryBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
