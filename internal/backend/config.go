package backend

import (
	"fmt"

	"invoicedesk/internal/config"
	gsheet "invoicedesk/internal/sheets/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Sessions:     BackendType(appConfig.SessionBackend),
		Ledger:       BackendType(appConfig.LedgerBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		WithOutbox:   appConfig.EventsEnabled(),
		RedisURL:     appConfig.RedisURL,
		Google: gsheet.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Sessions.IsValidSessionBackend() {
		return fmt.Errorf("invalid session backend: %s", c.Sessions)
	}
	if c.Ledger != "" && !c.Ledger.IsValidLedgerBackend() {
		return fmt.Errorf("invalid ledger backend: %s", c.Ledger)
	}

	if (c.Sessions == SQLiteBackend || c.WithOutbox) && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite sessions and the event outbox")
	}
	if c.Sessions == RedisBackend && c.RedisURL == "" {
		return fmt.Errorf("Redis URL is required for redis sessions")
	}
	if c.Ledger == SheetsBackend && c.Google.SpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets ledger")
	}
	return nil
}
