// Package cli holds the initialization shared by cmd/spendly and
// cmd/spendly-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendly/internal/config"
	"spendly/internal/datastore"
	"spendly/internal/datastore/memory"
	"spendly/internal/datastore/sqlite"
	"spendly/internal/events"
	"spendly/internal/log"
)

// LoadEnvFile loads the .env file for local development. Errors are
// ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Setup loads the environment, the configuration, and the logger.
// It exits the process on validation failure.
func Setup() (*config.Config, *slog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := log.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitDatastore opens the configured backend or exits the process.
func InitDatastore(logger *slog.Logger, cfg *config.Config) datastore.Client {
	switch cfg.DataBackend {
	case "sqlite":
		db, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to open SQLite datastore", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		logger.Info("SQLite datastore ready", "path", cfg.SQLiteDBPath)
		return db
	default:
		logger.Info("Using in-memory datastore")
		return memory.New()
	}
}

// InitEvents connects to the broker, or returns nil when AMQP is not
// configured so the callers fall back to no-op publishing.
func InitEvents(logger *slog.Logger, cfg *config.Config) *events.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, event stream disabled")
		return nil
	}
	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	logger.Info("AMQP event stream ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown sets up signal handling. It returns a context that is
// cancelled on SIGINT/SIGTERM and a channel closed once cleanup has run.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}

		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup has
// finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
