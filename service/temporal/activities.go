package temporal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/amr0ny/bc-parser/service/accounts"
	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/report"
	"github.com/amr0ny/bc-parser/service/worker"
)

// ReadAccountsResult contains the accounts to process in this cycle.
type ReadAccountsResult struct {
	Accounts []accounts.Account `json:"accounts"`
}

// LocateAndStoreInput contains parameters for the LocateAndStore activity.
type LocateAndStoreInput struct {
	Account accounts.Account `json:"account"`
}

// LocateAndStoreResult contains the outcome of one account lookup.
type LocateAndStoreResult struct {
	Account string `json:"account"`
	Outcome string `json:"outcome"` // "found" or "not_found"
}

// FlushInput contains parameters for the Flush activity.
type FlushInput struct {
	At time.Time `json:"at"`
	// StartedAt is when the cycle workflow began; it times the whole cycle.
	StartedAt time.Time `json:"started_at"`
}

// FlushResult contains the result of writing the report.
type FlushResult struct {
	Rows int `json:"rows"`
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	cache        worker.Cache
	source       accounts.Source
	locator      worker.Locator
	sink         report.Sink
	contractName string
	pageSize     int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	cache worker.Cache,
	source accounts.Source,
	locator worker.Locator,
	sink report.Sink,
	contractName string,
	pageSize int,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Activities{
		cache:        cache,
		source:       source,
		locator:      locator,
		sink:         sink,
		contractName: contractName,
		pageSize:     pageSize,
		metrics:      m,
		logger:       logger,
	}
}

// ResetCache empties the record cache at the start of a cycle.
func (a *Activities) ResetCache(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { a.metrics.RecordActivityDuration("ResetCache", time.Since(start).Seconds(), err) }()

	if err := a.cache.Reset(ctx); err != nil {
		a.logger.ErrorContext(ctx, "failed to reset cache", "error", err)
		return err
	}
	return nil
}

// ReadAccounts fetches the account list from the configured source.
func (a *Activities) ReadAccounts(ctx context.Context) (result *ReadAccountsResult, err error) {
	start := time.Now()
	defer func() { a.metrics.RecordActivityDuration("ReadAccounts", time.Since(start).Seconds(), err) }()

	accts, err := a.source.ReadAccounts(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to read accounts", "error", err)
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	a.logger.InfoContext(ctx, "read accounts", "count", len(accts))
	return &ReadAccountsResult{Accounts: accts}, nil
}

// LocateAndStore looks up one account and caches the result.
// A cache failure is returned so Temporal retries the activity.
func (a *Activities) LocateAndStore(ctx context.Context, input LocateAndStoreInput) (result *LocateAndStoreResult, err error) {
	start := time.Now()
	defer func() { a.metrics.RecordActivityDuration("LocateAndStore", time.Since(start).Seconds(), err) }()

	outcome := worker.LocateAndStore(ctx, a.locator, a.cache, a.contractName, input.Account, a.logger)
	a.metrics.RecordAccountProcessed(outcome)
	if outcome == worker.OutcomeCacheError {
		return nil, fmt.Errorf("failed to cache record for %s", input.Account.ID)
	}

	return &LocateAndStoreResult{Account: input.Account.ID, Outcome: outcome}, nil
}

// Flush writes the cached records to the report sink and stamps it.
func (a *Activities) Flush(ctx context.Context, input FlushInput) (result *FlushResult, err error) {
	start := time.Now()
	defer func() { a.metrics.RecordActivityDuration("Flush", time.Since(start).Seconds(), err) }()

	rows, err := worker.Flush(ctx, a.cache, a.sink, a.pageSize, input.At)
	if !input.StartedAt.IsZero() {
		status := "success"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordWorkflowDuration(status, time.Since(input.StartedAt).Seconds())
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to flush report", "rows_written", rows, "error", err)
		return nil, err
	}

	a.logger.InfoContext(ctx, "report flushed", "rows", rows)
	return &FlushResult{Rows: rows}, nil
}
