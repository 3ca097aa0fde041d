// Package cli holds the start-up steps shared by cmd/invoicedesk and
// cmd/invoicedesk-ledger.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"invoicedesk/internal/config"
	applog "invoicedesk/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Setup loads the configuration, builds the process logger for component
// and installs it as the slog default, then runs validate.
func Setup(component string, validate func(*config.Config) error) (*config.Config, *applog.Logger, error) {
	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: component,
	})
	slog.SetDefault(logger.Logger)

	if validate != nil {
		if err := validate(cfg); err != nil {
			return cfg, logger, err
		}
	}
	return cfg, logger, nil
}

// MustSetup is LoadEnvFile followed by Setup, exiting the process when the
// configuration is invalid.
func MustSetup(component string, validate func(*config.Config) error) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg, logger, err := Setup(component, validate)
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM. The
// signal is logged once.
func ShutdownContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
