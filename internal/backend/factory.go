package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"invoicedesk/internal/auth"
	"invoicedesk/internal/sheets"
	gsheet "invoicedesk/internal/sheets/google"
	"invoicedesk/internal/sheets/memory"
	"invoicedesk/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateSessions implements Factory.CreateSessions
func (f *DefaultFactory) CreateSessions(ctx context.Context, config Config) (*SessionResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var db *storage.DB
	if config.Sessions == SQLiteBackend || config.WithOutbox {
		var err error
		db, err = storage.Open(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite database: %w", err)
		}
		f.logger.Info("Initialized SQLite database", "db_path", config.SQLiteDBPath)
	}

	res := &SessionResult{}
	var closers []func() error
	var checks []ReadyFunc
	if db != nil {
		closers = append(closers, db.Close)
		checks = append(checks, func(context.Context) error { return db.Ping() })
		if config.WithOutbox {
			res.Outbox = storage.NewOutbox(db)
		}
	}

	switch config.Sessions {
	case SQLiteBackend:
		res.Store = storage.NewSessionStore(db)
	case RedisBackend:
		rs, err := storage.NewRedisSessionStore(ctx, config.RedisURL)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("failed to initialize Redis session store: %w", err)
		}
		res.Store = rs
		closers = append(closers, rs.Close)
		checks = append(checks, func(context.Context) error { return rs.Ping() })
	default:
		res.Store = auth.NewMemoryStore()
	}

	f.logger.Info("Initialized session backend",
		"backend", config.Sessions,
		"outbox_enabled", res.Outbox != nil)

	res.Cleanup = func() error { return closeAll(closers) }
	res.Ready = func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	return res, nil
}

// CreateLedger implements Factory.CreateLedger
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (sheets.Ledger, error) {
	switch config.Ledger {
	case SheetsBackend:
		cli, err := gsheet.New(ctx, config.Google)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets ledger")
		return cli, nil
	case MemoryBackend, "":
		f.logger.Info("Initialized memory ledger")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", config.Ledger)
	}
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
