package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	SessionMemory = "memory"
	SessionSQLite = "sqlite"
	SessionRedis  = "redis"

	LedgerMemory = "memory"
	LedgerSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port           string
	CookieSecure   bool
	UploadMaxBytes int64
	RateLimit      int
	TrustedProxies []string
	LogLevel       string

	// Invoice API
	APIBaseURL string
	APITimeout time.Duration
	PageLimit  int
	CacheTTL   time.Duration

	// Sessions
	SessionBackend string
	SessionTTL     time.Duration
	SQLiteDBPath   string
	RedisURL       string

	// AMQP
	AMQPURL       string
	AMQPExchange  string
	AMQPQueue     string
	RelayInterval time.Duration

	// Ledger
	LedgerBackend            string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		CookieSecure:   getEnvBool("COOKIE_SECURE", false),
		UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		RateLimit:      getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000"), "/"),
		APITimeout: getEnvDuration("API_TIMEOUT", 15*time.Second),
		PageLimit:  getEnvInt("PAGE_LIMIT", 10),
		CacheTTL:   getEnvDuration("CACHE_TTL", 5*time.Minute),

		SessionBackend: getEnv("SESSION_BACKEND", SessionSQLite),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/invoicedesk.db"),
		RedisURL:       getEnv("REDIS_URL", ""),

		AMQPURL:       getEnv("AMQP_URL", ""),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "invoicedesk"),
		AMQPQueue:     getEnv("AMQP_QUEUE", "invoice_ledger"),
		RelayInterval: getEnvDuration("RELAY_INTERVAL", 5*time.Second),

		LedgerBackend:            getEnv("LEDGER_BACKEND", LedgerMemory),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Invoices"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}
}

// EventsEnabled reports whether invoice change events are published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate API base URL
	if parsedURL, err := url.Parse(c.APIBaseURL); err != nil || c.APIBaseURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.APITimeout < time.Second || c.APITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 1s and 5m", c.APITimeout))
	}
	if c.PageLimit < 1 || c.PageLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid page limit %d: must be between 1 and 100", c.PageLimit))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.UploadMaxBytes < 1<<10 {
		errors = append(errors, fmt.Sprintf("invalid upload limit %d: must be at least 1024 bytes", c.UploadMaxBytes))
	}
	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// Validate session backend
	validSessions := []string{SessionMemory, SessionSQLite, SessionRedis}
	if !slices.Contains(validSessions, c.SessionBackend) {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validSessions))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	// The SQLite file also holds the event outbox.
	if c.SessionBackend == SessionSQLite || c.EventsEnabled() {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite sessions or events")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.SessionBackend == SessionRedis {
		if c.RedisURL == "" {
			errors = append(errors, "REDIS_URL is required when using redis sessions")
		} else if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.RelayInterval < 100*time.Millisecond || c.RelayInterval > time.Hour {
			errors = append(errors, fmt.Sprintf("invalid relay interval %v: must be between 100ms and 1h", c.RelayInterval))
		}
	}

	errors = append(errors, c.validateLedger()...)

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateLedger checks only what the ledger worker needs.
func (c *Config) ValidateLedger() error {
	problems := c.validateLedger()
	if c.AMQPURL == "" {
		problems = append(problems, "AMQP_URL is required by the ledger worker")
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func (c *Config) validateLedger() []string {
	var errors []string
	validLedgers := []string{LedgerMemory, LedgerSheets}
	if !slices.Contains(validLedgers, c.LedgerBackend) {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validLedgers))
	}
	if c.LedgerBackend != LedgerSheets {
		return errors
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets ledger")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when using sheets ledger")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
