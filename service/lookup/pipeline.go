// Package lookup finds the first unattributed mint credited to an account and
// enriches it with the account's balances.
package lookup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/nearblocks"
	"github.com/amr0ny/bc-parser/service/record"
)

// DefaultMaxPages is how many transaction pages are scanned when not configured.
const DefaultMaxPages = 3

// Explorer is the subset of the explorer feeds the pipeline needs.
// This allows us to fake the HTTP layer in tests.
type Explorer interface {
	Txns(ctx context.Context, account, contract string, page int) ([]nearblocks.Txn, error)
	TxnDetail(ctx context.Context, hash string) (*nearblocks.TxnDetail, error)
	NativeBalance(ctx context.Context, account string) (any, error)
	Inventory(ctx context.Context, account string) ([]nearblocks.FT, error)
}

// Lookup outcomes recorded in metrics.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Pipeline locates and enriches mint events.
type Pipeline struct {
	explorer   Explorer
	serializer *record.Serializer
	maxPages   int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewPipeline creates a lookup pipeline scanning pages 1..maxPages inclusive.
func NewPipeline(explorer Explorer, serializer *record.Serializer, maxPages int, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if serializer == nil {
		serializer = record.NewSerializer(record.AgeHours)
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Pipeline{
		explorer:   explorer,
		serializer: serializer,
		maxPages:   maxPages,
		logger:     logger,
		metrics:    m,
	}
}

// Locate returns the account's Record. It never fails: when no validated mint is
// found, or any call errors, the placeholder carrying only the account name is returned.
func (p *Pipeline) Locate(ctx context.Context, accountID, contractName, claimPeriod string) *record.Record {
	start := time.Now()
	logger := p.logger.With("account", accountID, "contract", contractName)

	rec, pages, err := p.locate(ctx, accountID, contractName, claimPeriod)
	outcome := OutcomeFound
	switch {
	case err != nil:
		outcome = OutcomeError
		logger.ErrorContext(ctx, "lookup failed", "error", err, "pages", pages)
		rec = record.Placeholder(accountID)
	case rec == nil:
		outcome = OutcomeNotFound
		logger.InfoContext(ctx, "no qualifying mint found", "pages", pages)
		rec = record.Placeholder(accountID)
	default:
		logger.InfoContext(ctx, "mint located", "hash", *rec.Hash, "pages", pages)
	}

	p.metrics.RecordLookup(outcome, time.Since(start).Seconds(), pages)
	return rec
}

func (p *Pipeline) locate(ctx context.Context, accountID, contractName, claimPeriod string) (*record.Record, int, error) {
	txn, pages, err := p.findMint(ctx, accountID, contractName)
	if err != nil || txn == nil {
		return nil, pages, err
	}

	raw, err := p.enrich(ctx, txn, accountID, contractName)
	if err != nil {
		return nil, pages, err
	}
	raw[record.FieldClaimPeriod] = claimPeriod

	rec, err := p.serializer.FromRaw(raw, accountID)
	if err != nil {
		return nil, pages, fmt.Errorf("failed to serialize %s: %w", txn.Hash(), err)
	}
	if rec.Hash == nil {
		return nil, pages, fmt.Errorf("validated mint has no transaction hash")
	}
	return rec, pages, nil
}

// findMint scans pages in order for the first unattributed mint whose detail
// agrees on the credited account. A rejected candidate does not stop the scan.
// It returns the number of pages fetched.
func (p *Pipeline) findMint(ctx context.Context, accountID, contractName string) (nearblocks.Txn, int, error) {
	pages := 0
	for page := 1; page <= p.maxPages; page++ {
		txns, err := p.explorer.Txns(ctx, accountID, contractName, page)
		pages++
		if err != nil {
			return nil, pages, fmt.Errorf("failed to fetch txns page %d: %w", page, err)
		}
		if len(txns) == 0 {
			break
		}

		for _, txn := range txns {
			if !txn.IsMintCandidate() {
				continue
			}
			ok, err := p.validate(ctx, txn)
			if err != nil {
				return nil, pages, err
			}
			if ok {
				return txn, pages, nil
			}
			p.metrics.RecordCandidateRejected()
			p.logger.DebugContext(ctx, "mint candidate rejected by detail feed",
				"account", accountID,
				"hash", txn.Hash(),
				"page", page,
			)
		}
	}
	return nil, pages, nil
}

// validate checks the detail feed's first fts entry against the candidate.
func (p *Pipeline) validate(ctx context.Context, txn nearblocks.Txn) (bool, error) {
	detail, err := p.explorer.TxnDetail(ctx, txn.Hash())
	if err != nil {
		return false, fmt.Errorf("failed to fetch txn detail %s: %w", txn.Hash(), err)
	}
	ft, ok := detail.FirstFT()
	if !ok {
		return false, nil
	}
	affected, _ := ft[record.FieldAffectedAccountID].(string)
	return affected == txn.AffectedAccountID(), nil
}

// enrich fetches the native balance and the token inventory concurrently and
// merges them into a copy of txn.
func (p *Pipeline) enrich(ctx context.Context, txn nearblocks.Txn, accountID, contractName string) (map[string]any, error) {
	var (
		nearAmount any
		hotAmount  any
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		amount, err := p.explorer.NativeBalance(gctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to fetch native balance: %w", err)
		}
		nearAmount = amount
		return nil
	})
	g.Go(func() error {
		fts, err := p.explorer.Inventory(gctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to fetch inventory: %w", err)
		}
		for _, ft := range fts {
			if ft.Contract == contractName {
				hotAmount = ft.Amount
				break
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw := maps.Clone(map[string]any(txn))
	if raw == nil {
		raw = map[string]any{}
	}
	if nearAmount != nil {
		raw[record.FieldNearAmount] = nearAmount
	}
	if hotAmount != nil {
		raw[record.FieldHotAmount] = hotAmount
	}
	return raw, nil
}
