// Package worker runs the reporting cycle: look up every account, cache the
// results, then flush the cache to the report sink.
package worker

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/amr0ny/bc-parser/service/accounts"
	"github.com/amr0ny/bc-parser/service/db"
	"github.com/amr0ny/bc-parser/service/lookup"
	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/report"
)

// State is the phase the runner is in.
type State string

const (
	StateIdle             State = "idle"
	StateDrainingAccounts State = "draining_accounts"
	StateFlushing         State = "flushing"
	StateSleeping         State = "sleeping"
)

var allStates = []string{
	string(StateIdle),
	string(StateDrainingAccounts),
	string(StateFlushing),
	string(StateSleeping),
}

// Account outcomes recorded in metrics.
const (
	OutcomeFound      = "found"
	OutcomeNotFound   = "not_found"
	OutcomeCacheError = "cache_error"
)

// Cache is the subset of the record cache a cycle needs.
type Cache interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, name string, fields db.UpsertFields) error
	ReadPages(ctx context.Context, pageSize int) iter.Seq[[]*record.Record]
}

// Session is a Cache held for the duration of one cycle.
type Session interface {
	Cache
	Release()
}

// AcquireFunc opens a cache session. The runner releases it when the cycle ends.
type AcquireFunc func(ctx context.Context) (Session, error)

// StoreAcquirer acquires sessions from a Postgres store.
func StoreAcquirer(store *db.Store) AcquireFunc {
	return func(ctx context.Context) (Session, error) {
		session, err := store.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// Locator finds the Record for one account. It never fails.
type Locator interface {
	Locate(ctx context.Context, accountID, contractName, claimPeriod string) *record.Record
}

var _ Locator = (*lookup.Pipeline)(nil)

// Config holds the runner's tunables.
type Config struct {
	ContractName  string
	AccountDelay  time.Duration
	CycleInterval time.Duration
	PageSize      int
	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// Status is a snapshot of the runner for the status API.
type Status struct {
	State           State     `json:"state"`
	CyclesCompleted int       `json:"cycles_completed"`
	CyclesFailed    int       `json:"cycles_failed"`
	LastCycleAt     time.Time `json:"last_cycle_at,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
	LastRows        int       `json:"last_rows"`
}

// Runner drives the reporting cycle.
type Runner struct {
	cfg     Config
	acquire AcquireFunc
	source  accounts.Source
	locator Locator
	sink    report.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	status Status
}

// NewRunner creates a cycle runner. If metrics is nil, no metrics will be recorded.
func NewRunner(cfg Config, acquire AcquireFunc, source accounts.Source, locator Locator, sink report.Sink, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = db.DefaultPageSize
	}
	r := &Runner{
		cfg:     cfg,
		acquire: acquire,
		source:  source,
		locator: locator,
		sink:    sink,
		logger:  logger.With("component", "cycle_runner"),
		metrics: m,
	}
	r.setState(StateIdle)
	return r
}

// State returns the current runner state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.State
}

// Status returns a snapshot of the runner.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.status.State = s
	r.mu.Unlock()
	r.metrics.SetCycleState(string(s), allStates)
}

// Run executes cycles until ctx is cancelled, sleeping CycleInterval after each.
// A failed cycle is logged and the runner sleeps as usual.
func (r *Runner) Run(ctx context.Context) error {
	defer r.setState(StateIdle)

	for {
		if err := r.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.ErrorContext(ctx, "cycle abandoned", "error", err)
		}

		r.setState(StateSleeping)
		r.logger.InfoContext(ctx, "sleeping until next cycle", "interval", r.cfg.CycleInterval)

		if err := sleep(ctx, r.cfg.CycleInterval); err != nil {
			r.logger.InfoContext(ctx, "runner stopped")
			return nil
		}
	}
}

// RunCycle performs one full cycle: reset the cache, look up and store every
// account, then flush the cache to the sink.
func (r *Runner) RunCycle(ctx context.Context) error {
	start := r.cfg.Now()
	rows, err := r.runCycle(ctx)
	finished := r.cfg.Now()
	duration := finished.Sub(start).Seconds()

	r.mu.Lock()
	if err != nil {
		r.status.CyclesFailed++
		r.status.LastError = err.Error()
	} else {
		r.status.CyclesCompleted++
		r.status.LastCycleAt = finished
		r.status.LastError = ""
		r.status.LastRows = rows
	}
	r.mu.Unlock()

	if err != nil {
		r.metrics.RecordCycle("error", duration, 0)
		return err
	}
	r.metrics.RecordCycle("success", duration, float64(finished.Unix()))
	r.logger.InfoContext(ctx, "cycle completed", "rows", rows, "duration", finished.Sub(start))
	return nil
}

func (r *Runner) runCycle(ctx context.Context) (int, error) {
	r.setState(StateDrainingAccounts)

	session, err := r.acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open cache session: %w", err)
	}
	defer session.Release()

	if err := session.Reset(ctx); err != nil {
		r.logger.ErrorContext(ctx, "failed to reset cache, continuing with stale rows", "error", err)
	}

	accts, err := r.source.ReadAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read accounts: %w", err)
	}
	r.logger.InfoContext(ctx, "cycle started", "accounts", len(accts))

	for i, acct := range accts {
		if i > 0 {
			if err := sleep(ctx, r.cfg.AccountDelay); err != nil {
				return 0, err
			}
		}
		outcome := LocateAndStore(ctx, r.locator, session, r.cfg.ContractName, acct, r.logger)
		r.metrics.RecordAccountProcessed(outcome)
	}

	r.setState(StateFlushing)
	return Flush(ctx, session, r.sink, r.cfg.PageSize, r.cfg.Now())
}

// LocateAndStore looks up one account and upserts the result into the cache.
// A cache failure is logged and the account is dropped from this cycle.
func LocateAndStore(ctx context.Context, locator Locator, cache Cache, contractName string, acct accounts.Account, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	rec := locator.Locate(ctx, acct.ID, contractName, acct.ClaimPeriod)

	if err := cache.Upsert(ctx, acct.ID, db.FieldsOf(rec)); err != nil {
		logger.ErrorContext(ctx, "failed to cache record", "account", acct.ID, "error", err)
		return OutcomeCacheError
	}

	if rec.IsPlaceholder() {
		logger.InfoContext(ctx, "no mint found", "account", acct.ID)
		return OutcomeNotFound
	}
	logger.InfoContext(ctx, "mint found", "account", acct.ID, "hash", *rec.Hash)
	return OutcomeFound
}

// Flush replaces the report with the cache contents, page by page, and stamps it.
// It returns the number of rows written.
func Flush(ctx context.Context, cache Cache, sink report.Sink, pageSize int, at time.Time) (int, error) {
	if err := sink.Clear(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear report: %w", err)
	}

	rows := 0
	for batch := range cache.ReadPages(ctx, pageSize) {
		if err := sink.Append(ctx, batch); err != nil {
			return rows, fmt.Errorf("failed to append report rows: %w", err)
		}
		rows += len(batch)
	}
	if err := ctx.Err(); err != nil {
		return rows, err
	}

	if err := sink.UpdateTimestamp(ctx, at); err != nil {
		return rows, fmt.Errorf("failed to stamp report: %w", err)
	}
	return rows, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

