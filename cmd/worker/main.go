package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amr0ny/bc-parser/service/app"
	"github.com/amr0ny/bc-parser/service/config"
	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/server"
	"github.com/amr0ny/bc-parser/service/temporal"
	"github.com/amr0ny/bc-parser/service/worker"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := app.NewLogger(os.Stderr, cfg.SlogLevel())
	logger.Info("starting worker",
		"run_mode", cfg.RunMode,
		"source", cfg.Source,
		"contract", cfg.ContractName,
		"log_level", cfg.LogLevel,
	)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Initialize database store
	store, pool, err := app.ConnectDB(ctx, cfg.DatabaseURL, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Account source and report sinks
	sh := app.NewSheets(cfg)
	source, err := app.NewSource(ctx, cfg, sh, logger)
	if err != nil {
		logger.Error("failed to initialize account source", "error", err)
		os.Exit(1)
	}
	sink, closeSinks, err := app.NewSink(ctx, cfg, sh, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to initialize report sinks", "error", err)
		os.Exit(1)
	}
	defer closeSinks()

	pipeline := app.NewPipeline(cfg, metricsCollector, logger)

	switch cfg.RunMode {
	case config.RunModeTemporal:
		w, err := temporal.NewWorker(temporal.WorkerConfig{
			TemporalHost:      cfg.TemporalHost,
			TemporalNamespace: cfg.TemporalNamespace,
			TaskQueue:         cfg.TemporalTaskQueue,
			Cache:             store,
			Source:            source,
			Locator:           pipeline,
			Sink:              sink,
			ContractName:      cfg.ContractName,
			PageSize:          cfg.CachePageSize,
			Metrics:           metricsCollector,
			Logger:            logger,
		})
		if err != nil {
			logger.Error("failed to create temporal worker", "error", err)
			os.Exit(1)
		}

		statusServer := startStatusServer(cfg, store, pipeline, nil, metricsCollector, logger)
		defer shutdownServer(statusServer, logger)

		workerErrors := make(chan error, 1)
		go func() {
			workerErrors <- w.Start()
		}()

		select {
		case err := <-workerErrors:
			if err != nil {
				logger.Error("temporal worker error", "error", err)
				os.Exit(1)
			}
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			w.Stop()
		}

	default:
		runner := worker.NewRunner(worker.Config{
			ContractName:  cfg.ContractName,
			AccountDelay:  cfg.AccountDelay,
			CycleInterval: cfg.CycleInterval,
			PageSize:      cfg.CachePageSize,
		}, worker.StoreAcquirer(store), source, pipeline, sink, metricsCollector, logger)

		statusServer := startStatusServer(cfg, store, pipeline, runner, metricsCollector, logger)
		defer shutdownServer(statusServer, logger)

		logger.Info("cycle runner started",
			"cycle_interval", cfg.CycleInterval,
			"account_delay", cfg.AccountDelay,
		)
		if err := runner.Run(ctx); err != nil {
			logger.Error("cycle runner stopped", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// startStatusServer serves the status API and /metrics on METRICS_ADDR.
func startStatusServer(cfg *config.Config, store server.RecordStore, locator worker.Locator, status server.StatusProvider, m *metrics.Metrics, logger *slog.Logger) *server.Server {
	srv := server.New(cfg.MetricsAddr, store, locator, cfg.ContractName, status, m, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("status server error", "error", err)
		}
	}()
	return srv
}

func shutdownServer(srv *server.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("failed to shutdown status server", "error", err)
	}
}
