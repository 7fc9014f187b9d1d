package lookup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/nearblocks"
	"github.com/amr0ny/bc-parser/service/record"
)

// fakeExplorer implements Explorer for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type fakeExplorer struct {
	pages     map[int][]nearblocks.Txn
	details   map[string]*nearblocks.TxnDetail
	balance   any
	inventory []nearblocks.FT

	txnsErr    error
	detailErr  error
	balanceErr error

	pagesFetched atomic.Int32
}

func (f *fakeExplorer) Txns(ctx context.Context, account, contract string, page int) ([]nearblocks.Txn, error) {
	f.pagesFetched.Add(1)
	if f.txnsErr != nil {
		return nil, f.txnsErr
	}
	return f.pages[page], nil
}

func (f *fakeExplorer) TxnDetail(ctx context.Context, hash string) (*nearblocks.TxnDetail, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.details[hash], nil
}

func (f *fakeExplorer) NativeBalance(ctx context.Context, account string) (any, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeExplorer) Inventory(ctx context.Context, account string) ([]nearblocks.FT, error) {
	return f.inventory, nil
}

func detailFor(affected string) *nearblocks.TxnDetail {
	return &nearblocks.TxnDetail{
		Txns: []nearblocks.DetailTxn{{
			Receipts: []nearblocks.Receipt{{
				FTs: []map[string]any{{"affected_account_id": affected}},
			}},
		}},
	}
}

func mint(hash, affected string) nearblocks.Txn {
	return nearblocks.Txn{
		"cause":               "MINT",
		"involved_account_id": nil,
		"affected_account_id": affected,
		"transaction_hash":    hash,
		"delta_amount":        "2500000",
		"block_timestamp":     "1717243200000000000",
	}
}

var now = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

func newTestPipeline(explorer Explorer, maxPages int) *Pipeline {
	serializer := &record.Serializer{AgeFormat: record.AgeHours, Now: func() time.Time { return now }}
	return NewPipeline(explorer, serializer, maxPages, nil, nil)
}

func TestLocate_FoundAndEnriched(t *testing.T) {
	explorer := &fakeExplorer{
		pages: map[int][]nearblocks.Txn{
			1: {
				{"cause": "TRANSFER", "involved_account_id": "bob.tg", "affected_account_id": "alice.tg", "transaction_hash": "t0"},
				mint("h1", "alice.tg"),
			},
		},
		details: map[string]*nearblocks.TxnDetail{"h1": detailFor("alice.tg")},
		balance: "15000000000000000000000000",
		inventory: []nearblocks.FT{
			{Contract: "usdt.tether-token.near", Amount: "99"},
			{Contract: "game.hot.tg", Amount: "1234567"},
		},
	}

	rec := newTestPipeline(explorer, 3).Locate(context.Background(), "alice.tg", "game.hot.tg", "10")

	assert.Equal(t, "alice.tg", rec.Name)
	require.NotNil(t, rec.Hash)
	assert.Equal(t, "h1", *rec.Hash)
	require.NotNil(t, rec.Quantity)
	assert.InDelta(t, 2.5, *rec.Quantity, 1e-12)
	require.NotNil(t, rec.Age)
	assert.Equal(t, "3", *rec.Age)
	require.NotNil(t, rec.NearAmount)
	assert.InDelta(t, 1.5, *rec.NearAmount, 1e-12)
	require.NotNil(t, rec.HotAmount)
	assert.InDelta(t, 1.234567, *rec.HotAmount, 1e-12)
	require.NotNil(t, rec.ClaimPeriod)
	assert.Equal(t, 10, *rec.ClaimPeriod)
}

func TestLocate_NoMintReturnsPlaceholder(t *testing.T) {
	explorer := &fakeExplorer{
		pages: map[int][]nearblocks.Txn{
			1: {{"cause": "TRANSFER", "involved_account_id": "x.tg", "transaction_hash": "t1"}},
			2: {{"cause": "MINT", "involved_account_id": "x.tg", "transaction_hash": "t2"}},
			3: {{"cause": "TRANSFER", "involved_account_id": "y.tg", "transaction_hash": "t3"}},
			4: {mint("h4", "bob.tg")},
		},
	}

	rec := newTestPipeline(explorer, 3).Locate(context.Background(), "bob.tg", "game.hot.tg", "5")

	assert.Equal(t, "bob.tg", rec.Name)
	assert.True(t, rec.IsPlaceholder(), "claim period is not attached to a placeholder")
	assert.Equal(t, int32(3), explorer.pagesFetched.Load(), "page 4 is beyond the depth")
}

func TestLocate_EmptyPageStopsPaging(t *testing.T) {
	explorer := &fakeExplorer{
		pages: map[int][]nearblocks.Txn{
			1: {{"cause": "TRANSFER", "involved_account_id": "x.tg", "transaction_hash": "t1"}},
		},
	}

	rec := newTestPipeline(explorer, 3).Locate(context.Background(), "bob.tg", "game.hot.tg", "")

	assert.True(t, rec.IsPlaceholder())
	assert.Equal(t, int32(2), explorer.pagesFetched.Load())
}

func TestLocate_MismatchContinuesScanning(t *testing.T) {
	explorer := &fakeExplorer{
		pages: map[int][]nearblocks.Txn{
			1: {mint("bad", "alice.tg")},
			2: {mint("good", "alice.tg")},
		},
		details: map[string]*nearblocks.TxnDetail{
			"bad":  detailFor("someone-else.tg"),
			"good": detailFor("alice.tg"),
		},
		balance: "0",
	}

	rec := newTestPipeline(explorer, 3).Locate(context.Background(), "alice.tg", "game.hot.tg", "")

	require.NotNil(t, rec.Hash)
	assert.Equal(t, "good", *rec.Hash)
	assert.Nil(t, rec.HotAmount, "no inventory entry for the contract stays absent")
	assert.Nil(t, rec.ClaimPeriod)
}

func TestLocate_MissingDetailRejectsCandidate(t *testing.T) {
	explorer := &fakeExplorer{
		pages: map[int][]nearblocks.Txn{
			1: {mint("h1", "alice.tg"), mint("h2", "alice.tg")},
		},
		details: map[string]*nearblocks.TxnDetail{
			"h1": {},
			"h2": detailFor("alice.tg"),
		},
	}

	rec := newTestPipeline(explorer, 1).Locate(context.Background(), "alice.tg", "game.hot.tg", "")

	require.NotNil(t, rec.Hash)
	assert.Equal(t, "h2", *rec.Hash)
	assert.Nil(t, rec.NearAmount, "nil balance stays absent")
}

func TestLocate_ErrorsReturnPlaceholder(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name     string
		explorer *fakeExplorer
	}{
		{
			name:     "txns feed fails",
			explorer: &fakeExplorer{txnsErr: boom},
		},
		{
			name: "detail feed fails",
			explorer: &fakeExplorer{
				pages:     map[int][]nearblocks.Txn{1: {mint("h1", "alice.tg")}},
				detailErr: boom,
			},
		},
		{
			name: "balance feed fails",
			explorer: &fakeExplorer{
				pages:      map[int][]nearblocks.Txn{1: {mint("h1", "alice.tg")}},
				details:    map[string]*nearblocks.TxnDetail{"h1": detailFor("alice.tg")},
				balanceErr: boom,
			},
		},
		{
			name: "malformed amount",
			explorer: &fakeExplorer{
				pages: map[int][]nearblocks.Txn{1: {
					{"cause": "MINT", "affected_account_id": "alice.tg", "transaction_hash": "h1", "delta_amount": "lots"},
				}},
				details: map[string]*nearblocks.TxnDetail{"h1": detailFor("alice.tg")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestPipeline(tt.explorer, 3).Locate(context.Background(), "alice.tg", "game.hot.tg", "10")
			assert.Equal(t, "alice.tg", rec.Name)
			assert.True(t, rec.IsPlaceholder())
		})
	}
}
