package temporal

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/accounts"
	"github.com/amr0ny/bc-parser/service/db"
	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/report"
	"github.com/amr0ny/bc-parser/service/worker"
)

// Mock Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCache) Upsert(ctx context.Context, name string, fields db.UpsertFields) error {
	args := m.Called(ctx, name, fields)
	return args.Error(0)
}

func (m *MockCache) ReadPages(ctx context.Context, pageSize int) iter.Seq[[]*record.Record] {
	args := m.Called(ctx, pageSize)
	return args.Get(0).(iter.Seq[[]*record.Record])
}

// Mock Locator
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) Locate(ctx context.Context, accountID, contractName, claimPeriod string) *record.Record {
	args := m.Called(ctx, accountID, contractName, claimPeriod)
	return args.Get(0).(*record.Record)
}

func pages(batches ...[]*record.Record) iter.Seq[[]*record.Record] {
	return func(yield func([]*record.Record) bool) {
		for _, b := range batches {
			if !yield(b) {
				return
			}
		}
	}
}

func TestActivities_ResetCache(t *testing.T) {
	cache := new(MockCache)
	cache.On("Reset", mock.Anything).Return(nil).Once()

	acts := NewActivities(cache, nil, nil, nil, "game.hot.tg", 100, nil, nil)
	require.NoError(t, acts.ResetCache(context.Background()))
	cache.AssertExpectations(t)

	failing := new(MockCache)
	failing.On("Reset", mock.Anything).Return(errors.New("connection refused"))
	acts = NewActivities(failing, nil, nil, nil, "game.hot.tg", 100, nil, nil)
	assert.Error(t, acts.ResetCache(context.Background()))
}

func TestActivities_ReadAccounts(t *testing.T) {
	source := accounts.Static{{ID: "alice.tg", ClaimPeriod: "10"}}
	acts := NewActivities(nil, source, nil, nil, "game.hot.tg", 100, nil, nil)

	result, err := acts.ReadAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []accounts.Account{{ID: "alice.tg", ClaimPeriod: "10"}}, result.Accounts)
}

func TestActivities_LocateAndStore(t *testing.T) {
	ctx := context.Background()
	alice := &record.Record{
		Name:        "alice.tg",
		Hash:        record.StringPtr("h1"),
		Quantity:    record.FloatPtr(2.5),
		ClaimPeriod: record.IntPtr(10),
	}

	t.Run("found", func(t *testing.T) {
		locator := new(MockLocator)
		locator.On("Locate", mock.Anything, "alice.tg", "game.hot.tg", "10").Return(alice)
		cache := new(MockCache)
		cache.On("Upsert", mock.Anything, "alice.tg", db.FieldsOf(alice)).Return(nil)

		acts := NewActivities(cache, nil, locator, nil, "game.hot.tg", 100, nil, nil)
		result, err := acts.LocateAndStore(ctx, LocateAndStoreInput{Account: accounts.Account{ID: "alice.tg", ClaimPeriod: "10"}})
		require.NoError(t, err)
		assert.Equal(t, worker.OutcomeFound, result.Outcome)
		cache.AssertExpectations(t)
	})

	t.Run("not found stores placeholder", func(t *testing.T) {
		locator := new(MockLocator)
		locator.On("Locate", mock.Anything, "bob.tg", "game.hot.tg", "").Return(record.Placeholder("bob.tg"))
		cache := new(MockCache)
		cache.On("Upsert", mock.Anything, "bob.tg", db.UpsertFields{}).Return(nil)

		acts := NewActivities(cache, nil, locator, nil, "game.hot.tg", 100, nil, nil)
		result, err := acts.LocateAndStore(ctx, LocateAndStoreInput{Account: accounts.Account{ID: "bob.tg"}})
		require.NoError(t, err)
		assert.Equal(t, worker.OutcomeNotFound, result.Outcome)
		cache.AssertExpectations(t)
	})

	t.Run("cache failure is returned for retry", func(t *testing.T) {
		locator := new(MockLocator)
		locator.On("Locate", mock.Anything, "alice.tg", "game.hot.tg", "").Return(alice)
		cache := new(MockCache)
		cache.On("Upsert", mock.Anything, "alice.tg", mock.Anything).Return(errors.New("deadlock"))

		acts := NewActivities(cache, nil, locator, nil, "game.hot.tg", 100, nil, nil)
		_, err := acts.LocateAndStore(ctx, LocateAndStoreInput{Account: accounts.Account{ID: "alice.tg"}})
		assert.Error(t, err)
	})
}

func TestActivities_Flush(t *testing.T) {
	at := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	cache := new(MockCache)
	cache.On("ReadPages", mock.Anything, 2).Return(pages(
		[]*record.Record{{Name: "a.tg"}, {Name: "b.tg"}},
		[]*record.Record{{Name: "c.tg"}},
	))
	sink := report.NewMemory()

	acts := NewActivities(cache, nil, nil, sink, "game.hot.tg", 2, nil, nil)
	result, err := acts.Flush(context.Background(), FlushInput{At: at})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Rows)
	assert.Len(t, sink.Rows(), 3)
	assert.Equal(t, at, sink.LastUpdated())
	assert.Equal(t, 1, sink.Clears())
}

func TestActivities_Flush_RecordsCycleDuration(t *testing.T) {
	tests := []struct {
		name       string
		sink       report.Sink
		wantStatus string
		wantErr    bool
	}{
		{name: "success", sink: report.NewMemory(), wantStatus: "success"},
		{name: "error", sink: failingClearSink{}, wantStatus: "error", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			cache := new(MockCache)
			cache.On("ReadPages", mock.Anything, 2).Return(pages())

			acts := NewActivities(cache, nil, nil, tt.sink, "game.hot.tg", 2, metrics.NewMetrics(reg), nil)
			_, err := acts.Flush(context.Background(), FlushInput{
				At:        time.Now(),
				StartedAt: time.Now().Add(-time.Minute),
			})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			count, err := testutil.GatherAndCount(reg, "cycle_workflow_duration_seconds")
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			families, err := reg.Gather()
			require.NoError(t, err)
			var observed uint64
			for _, mf := range families {
				if mf.GetName() != "cycle_workflow_duration_seconds" {
					continue
				}
				for _, m := range mf.GetMetric() {
					for _, l := range m.GetLabel() {
						if l.GetName() == "status" && l.GetValue() == tt.wantStatus {
							observed = m.GetHistogram().GetSampleCount()
						}
					}
				}
			}
			assert.Equal(t, uint64(1), observed)
		})
	}
}

func TestActivities_Flush_WithoutStartTimeSkipsCycleDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	cache := new(MockCache)
	cache.On("ReadPages", mock.Anything, 2).Return(pages())

	acts := NewActivities(cache, nil, nil, report.NewMemory(), "game.hot.tg", 2, metrics.NewMetrics(reg), nil)
	_, err := acts.Flush(context.Background(), FlushInput{At: time.Now()})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "cycle_workflow_duration_seconds")
	require.NoError(t, err)
	assert.Zero(t, count)
}

type failingClearSink struct{ report.Sink }

func (failingClearSink) Clear(context.Context) error { return errors.New("sheets unavailable") }
