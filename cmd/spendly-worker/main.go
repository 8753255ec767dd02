package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spendly/internal/cli"
	"spendly/internal/events"
	"spendly/internal/ledger"
	"spendly/internal/report"
	gsheet "spendly/internal/report/google"
	memreport "spendly/internal/report/memory"
	"spendly/internal/worker"
)

func main() {
	cfg, logger := cli.Setup()
	logger.Info("Starting spendly-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	db := cli.InitDatastore(logger, cfg)
	defer db.Close()
	store := ledger.NewStore(db, logger)

	var writer report.Writer
	switch cfg.ReportBackend {
	case "sheets":
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets report writer", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets report backend ready", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		writer = memreport.New()
		logger.Info("In-memory report backend ready")
	}

	eventsClient := cli.InitEvents(logger, cfg)
	defer eventsClient.Close()

	reportWorker := worker.NewReportWorker(store, writer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- eventsClient.ConsumeWithRetry(ctx, func(e *events.Event) error {
			return reportWorker.HandleEvent(ctx, e)
		})
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, cancel)

	select {
	case err := <-consumeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Event consumption stopped")
	case <-shutdownCtx.Done():
		cli.WaitForShutdown(shutdownCtx, done)
	}

	logger.Info("Worker stopped gracefully")
}
