package main

import (
	"context"
	"errors"
	"os"
	"time"

	"invoicedesk/internal/amqp"
	"invoicedesk/internal/backend"
	"invoicedesk/internal/cli"
	"invoicedesk/internal/config"
	applog "invoicedesk/internal/log"
	"invoicedesk/internal/worker"
)

func main() {
	cfg, logger := cli.MustSetup(applog.ComponentWorker, (*config.Config).ValidateLedger)
	logger.Info("Starting invoicedesk-ledger")

	ctx, cancel := cli.ShutdownContext(context.Background(), logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	ledger, err := backend.NewFactory(logger.Logger).CreateLedger(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", cfg.LedgerBackend)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ledgerWorker := worker.NewLedgerWorker(ledger)

	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		if err := amqpClient.ConsumeInvoiceChanged(ctx, ledgerWorker.HandleInvoiceChanged); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()
	logger.Info("Consuming invoice events",
		"queue", cfg.AMQPQueue,
		"ledger_backend", cfg.LedgerBackend)

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	cancel()

	// Give the consumer time to finish the message in hand.
	select {
	case <-consumeDone:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
