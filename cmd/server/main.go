package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amr0ny/bc-parser/service/app"
	"github.com/amr0ny/bc-parser/service/config"
	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/server"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := app.NewLogger(os.Stderr, cfg.SlogLevel())
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil)

	// Initialize database store
	store, pool, err := app.ConnectDB(ctx, cfg.DatabaseURL, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Live lookups share the worker's explorer settings
	pipeline := app.NewPipeline(cfg, metricsCollector, logger)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, store, pipeline, cfg.ContractName, nil, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"contract", cfg.ContractName,
		"txns_url", cfg.TxnsURL,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}
