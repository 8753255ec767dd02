package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendly/internal/analytics"
	"spendly/internal/cli"
	apphttp "spendly/internal/http"
	"spendly/internal/ledger"
	"spendly/internal/services"
)

func main() {
	cfg, logger := cli.Setup()

	db := cli.InitDatastore(logger, cfg)
	defer db.Close()

	eventsClient := cli.InitEvents(logger, cfg)
	defer eventsClient.Close()

	store := ledger.NewStore(db, logger)
	settlements := services.NewSettlementService(store, eventsClient, logger)
	emis := services.NewEmiService(store, eventsClient, logger)
	reports := analytics.NewAggregator(store, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:      ":" + cfg.Port,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	}, store, settlements, emis, reports, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting spendly server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
