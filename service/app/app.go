// Package app assembles the service components from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/amr0ny/bc-parser/service/accounts"
	"github.com/amr0ny/bc-parser/service/config"
	"github.com/amr0ny/bc-parser/service/db"
	"github.com/amr0ny/bc-parser/service/lookup"
	"github.com/amr0ny/bc-parser/service/metrics"
	natspkg "github.com/amr0ny/bc-parser/service/nats"
	"github.com/amr0ny/bc-parser/service/nearblocks"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/report"
	"github.com/amr0ny/bc-parser/service/sheets"
)

// NewLogger creates a JSON logger at the given level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ConnectDB opens the pool, verifies connectivity and applies the schema.
// The caller closes the returned pool.
func ConnectDB(ctx context.Context, databaseURL string, m *metrics.Metrics, logger *slog.Logger) (*db.Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, m, logger.With("component", "store"))
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	logger.Info("connected to database")
	return store, pool, nil
}

// NewPipeline wires the explorer client into a lookup pipeline.
func NewPipeline(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *lookup.Pipeline {
	explorer := nearblocks.NewClient(nearblocks.Endpoints{
		Txns:    cfg.TxnsURL,
		Txn:     cfg.TxnURL,
		Account: cfg.AccountURL,
	}, &http.Client{Timeout: cfg.HTTPTimeout}, m, logger.With("component", "nearblocks"))

	return lookup.NewPipeline(
		explorer,
		record.NewSerializer(cfg.AgeFormat),
		cfg.ParsingDepth,
		m,
		logger.With("component", "lookup"),
	)
}

// Sheets lazily creates one Sheets API client shared by the reader and writer.
type Sheets struct {
	cfg *config.Config
	svc *sheetsapi.Service
}

// NewSheets creates a lazy Sheets client holder.
func NewSheets(cfg *config.Config) *Sheets {
	return &Sheets{cfg: cfg}
}

// Service returns the Sheets API client, creating it on first use.
func (s *Sheets) Service(ctx context.Context) (*sheetsapi.Service, error) {
	if s.svc != nil {
		return s.svc, nil
	}
	svc, err := sheets.NewService(ctx, s.cfg.GoogleServiceAccountFile)
	if err != nil {
		return nil, err
	}
	s.svc = svc
	return svc, nil
}

// NewSource creates the configured account source.
func NewSource(ctx context.Context, cfg *config.Config, sh *Sheets, logger *slog.Logger) (accounts.Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		logger.Info("reading accounts from file", "path", cfg.AccountsFile)
		return accounts.NewFileSource(cfg.AccountsFile), nil
	case config.SourceSheets:
		svc, err := sh.Service(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("reading accounts from spreadsheet", "worksheet", cfg.ReadWorksheet)
		return sheets.NewReader(svc, cfg.ReadSpreadsheetID, cfg.ReadWorksheet, logger.With("component", "sheets_reader")), nil
	default:
		return nil, fmt.Errorf("unknown account source %q", cfg.Source)
	}
}

// NewSink creates the report fan-out: the spreadsheet when WRITE_SPREADSHEET_ID is set,
// and JetStream when NATS_URL is set. The returned func releases the sinks' connections.
func NewSink(ctx context.Context, cfg *config.Config, sh *Sheets, m *metrics.Metrics, logger *slog.Logger) (*report.Multi, func(), error) {
	multi := report.NewMulti(m, logger.With("component", "report"))
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.WriteSpreadsheetID != "" {
		svc, err := sh.Service(ctx)
		if err != nil {
			return nil, closeAll, err
		}
		multi.Add("sheets", sheets.NewWriter(svc, cfg.WriteSpreadsheetID, cfg.WriteWorksheet, logger.With("component", "sheets_writer")))
		logger.Info("report sink enabled", "sink", "sheets", "worksheet", cfg.WriteWorksheet)
	}

	if cfg.NATSURL != "" {
		pub, err := natspkg.NewPublisher(cfg.NATSURL, m, logger.With("component", "nats"))
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("failed to close NATS publisher", "error", err)
			}
		})
		multi.Add("nats", natspkg.NewSink(pub, logger.With("component", "nats_sink")))
		logger.Info("report sink enabled", "sink", "nats")
	}

	if multi.Len() == 0 {
		logger.Warn("no report sink configured, reports are kept in the cache only")
	}
	return multi, closeAll, nil
}
