package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"invoicedesk/internal/amqp"
	"invoicedesk/internal/api"
	"invoicedesk/internal/auth"
	"invoicedesk/internal/backend"
	"invoicedesk/internal/cache"
	"invoicedesk/internal/cli"
	"invoicedesk/internal/config"
	"invoicedesk/internal/events"
	"invoicedesk/internal/export"
	apphttp "invoicedesk/internal/http"
	applog "invoicedesk/internal/log"
	"invoicedesk/internal/metrics"
	"invoicedesk/internal/services"
)

func main() {
	cfg, logger := cli.MustSetup(applog.ComponentApp, (*config.Config).Validate)

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)
	sessions, err := factory.CreateSessions(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize session backend", "error", err, "backend", cfg.SessionBackend)
		os.Exit(1)
	}
	defer func() {
		if err := sessions.Cleanup(); err != nil {
			logger.Error("Failed to close session backend", "error", err)
		}
	}()

	m := metrics.New()

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout,
		api.WithLogger(logger.WithComponent(applog.ComponentAPI).Logger),
		api.WithObserver(m))

	caches := cache.NewManager()
	caches.StartCleanup(time.Minute)
	defer caches.Stop()
	reports := services.NewReportCache(cfg.CacheTTL, caches)
	m.RegisterCache("reports", reports.Stats)

	// Invoice changes land in the SQLite outbox, which the factory opens
	// whenever AMQP_URL is set, whatever the session backend. The relay
	// forwards them to the broker.
	var (
		publisher events.Publisher = events.Nop{}
		relay     *services.Relay
		broker    *amqp.Client
	)
	if sessions.Outbox != nil {
		publisher = sessions.Outbox
		m.RegisterOutbox(sessions.Outbox.Stats)

		if n, err := sessions.Outbox.RetryFailed(ctx); err != nil {
			logger.Warn("Failed to requeue parked events", "error", err)
		} else if n > 0 {
			logger.Info("Requeued parked events", "count", n)
		}

		broker = amqp.New(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		relay = services.NewRelay(sessions.Outbox, broker, services.RelayConfig{
			PollInterval: cfg.RelayInterval,
			OnPublished:  m.ObserveRelayed,
		})
		if err := relay.Start(ctx); err != nil {
			logger.Error("Failed to start event relay", "error", err)
			os.Exit(1)
		}
		logger.Info("Invoice events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Invoice events disabled - no AMQP_URL provided")
	}

	svc := services.NewInvoiceService(client, reports, publisher)

	authManager := auth.NewManager(sessions.Store, client, auth.Options{
		TTL:          cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
		Logger:       logger,
	})
	authManager.StartSweeper(ctx, 15*time.Minute)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Service:        svc,
		Exporter:       export.NewDispatcher(client),
		Auth:           authManager,
		Logger:         logger,
		Metrics:        m,
		ReadyChecks:    []apphttp.ReadyCheck{{Name: "sessions", Check: sessions.Ready}},
		PageLimit:      cfg.PageLimit,
		UploadMaxBytes: cfg.UploadMaxBytes,
		RateLimit:      cfg.RateLimit,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	stopped := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if relay != nil {
			if err := relay.Stop(shutdownCtx); err != nil {
				logger.Error("Event relay shutdown error", "error", err)
			}
		}
		if broker != nil {
			if err := broker.Close(); err != nil {
				logger.Error("AMQP client close error", "error", err)
			}
		}
		close(stopped)
	}()

	logger.Info("Starting invoicedesk server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"session_backend", cfg.SessionBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		cancel()
		<-stopped
		os.Exit(1)
	}

	<-stopped
	logger.Info("Server stopped gracefully")
}
