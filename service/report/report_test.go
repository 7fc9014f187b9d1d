package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
)

type failingSink struct{ err error }

func (f failingSink) Clear(ctx context.Context) error { return f.err }
func (f failingSink) Append(ctx context.Context, recs []*record.Record) error {
	return f.err
}
func (f failingSink) UpdateTimestamp(ctx context.Context, at time.Time) error { return f.err }

func TestRows_PlaceholderRendersEmpty(t *testing.T) {
	rows := Rows([]*record.Record{record.Placeholder("bob.tg")})
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"bob.tg", "", "", "", "", "", ""}, rows[0])
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	first, second := NewMemory(), NewMemory()

	multi := NewMulti(metrics.NewMetrics(reg), nil).
		Add("first", first).
		Add("broken", failingSink{err: errors.New("quota exceeded")}).
		Add("second", second)
	assert.Equal(t, 3, multi.Len())

	err := multi.Clear(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken clear")

	recs := []*record.Record{{Name: "alice.tg", Hash: record.StringPtr("h1")}, record.Placeholder("bob.tg")}
	assert.Error(t, multi.Append(ctx, recs))

	stamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Error(t, multi.UpdateTimestamp(ctx, stamp))

	for _, m := range []*Memory{first, second} {
		assert.Equal(t, 1, m.Clears())
		assert.Len(t, m.Rows(), 2, "healthy sinks still receive rows")
		assert.Equal(t, stamp, m.LastUpdated())
	}

	count, err := testutil.GatherAndCount(reg, "sink_rows_written_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per healthy sink")
}

func TestMulti_Empty(t *testing.T) {
	multi := NewMulti(nil, nil)
	assert.NoError(t, multi.Clear(context.Background()))
	assert.NoError(t, multi.Append(context.Background(), nil))
}
