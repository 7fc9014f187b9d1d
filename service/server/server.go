package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/worker"
)

// RecordStore is the read side of the record cache.
type RecordStore interface {
	List(ctx context.Context) ([]*record.Record, error)
	Get(ctx context.Context, name string) (*record.Record, error)
	Count(ctx context.Context) (int64, error)
}

// StatusProvider reports the state of a cycle runner.
type StatusProvider interface {
	Status() worker.Status
}

// Server represents the HTTP status server.
type Server struct {
	addr         string
	store        RecordStore
	locator      worker.Locator
	contractName string
	status       StatusProvider
	gatherer     prometheus.Gatherer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The locator is optional - if nil, the live lookup endpoint returns 503.
// The status provider is optional - if nil, status reports only the cache size.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, store RecordStore, locator worker.Locator, contractName string, status StatusProvider, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Server{
		addr:         addr,
		store:        store,
		locator:      locator,
		contractName: contractName,
		status:       status,
		gatherer:     prometheus.DefaultGatherer,
		metrics:      m,
		logger:       logger.With("component", "http_server"),
	}
}

// WithGatherer serves /metrics from g instead of the default registry.
func (s *Server) WithGatherer(g prometheus.Gatherer) *Server {
	s.gatherer = g
	return s
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Record routes
	route("GET /api/v1/records", "/api/v1/records", handleListRecords(s.store, s.logger))
	route("GET /api/v1/records/{name}", "/api/v1/records/{name}", handleGetRecord(s.store, s.logger))
	route("GET /api/v1/locate/{account}", "/api/v1/locate/{account}", handleLocate(s.locator, s.contractName, s.logger))
	route("GET /api/v1/status", "/api/v1/status", handleStatus(s.store, s.status, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server. It blocks until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
