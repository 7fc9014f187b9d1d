package nats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/report"
)

func newTestSink() (*Sink, *MockPublisher) {
	pub := NewMockPublisher()
	return NewSink(pub, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func TestSink_PublishesCycle(t *testing.T) {
	ctx := context.Background()
	sink, pub := newTestSink()

	alice := &record.Record{Name: "alice.tg", Hash: record.StringPtr("h1"), Quantity: record.FloatPtr(1.234567)}
	bob := record.Placeholder("bob.tg")

	require.NoError(t, sink.Clear(ctx))
	require.NoError(t, sink.Append(ctx, []*record.Record{alice, bob}))
	stamp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.UpdateTimestamp(ctx, stamp))

	events := pub.RecordEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "alice.tg", events[0].Name)
	assert.True(t, events[0].Found)
	assert.Equal(t, 1.23457, *events[0].Quantity)
	assert.Equal(t, "bob.tg", events[1].Name)
	assert.False(t, events[1].Found)
	assert.Nil(t, events[1].Hash)

	cycles := pub.CycleEvents()
	require.Len(t, cycles, 2)
	assert.Equal(t, CycleStarted, cycles[0].Kind)
	assert.Equal(t, CycleCompleted, cycles[1].Kind)
	assert.Equal(t, 2, cycles[1].Rows)
	assert.True(t, stamp.Equal(cycles[1].At))
}

func TestSink_PublishErrors(t *testing.T) {
	ctx := context.Background()
	sink, pub := newTestSink()
	pub.SetPublishError(errors.New("nats down"))

	assert.Error(t, sink.Clear(ctx))

	err := sink.Append(ctx, []*record.Record{record.Placeholder("alice.tg"), record.Placeholder("bob.tg")})
	require.Error(t, err)
	assert.ErrorContains(t, err, "alice.tg")
	assert.ErrorContains(t, err, "bob.tg", "every row is attempted")
	assert.Empty(t, pub.RecordEvents())
}

func TestSink_AppendFailureReachesMulti(t *testing.T) {
	ctx := context.Background()
	sink, pub := newTestSink()
	pub.SetPublishError(errors.New("nats down"))

	reg := prometheus.NewRegistry()
	multi := report.NewMulti(metrics.NewMetrics(reg), nil).Add("nats", sink)

	require.Error(t, multi.Append(ctx, []*record.Record{record.Placeholder("bob.tg")}))

	expected := `
# HELP sink_operations_total Total number of report sink operations
# TYPE sink_operations_total counter
sink_operations_total{operation="append",sink="nats",status="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sink_operations_total"))

	count, err := testutil.GatherAndCount(reg, "sink_rows_written_total")
	require.NoError(t, err)
	assert.Zero(t, count, "failed rows are not counted as written")
}

func TestRecordSubject(t *testing.T) {
	assert.Equal(t, "records.alice.tg", RecordSubject("alice.tg"))
}
