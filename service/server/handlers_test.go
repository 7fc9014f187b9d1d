package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/db"
	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/worker"
)

type fakeStore struct {
	records []*record.Record
	err     error
}

func (f *fakeStore) List(ctx context.Context) ([]*record.Record, error) {
	return f.records, f.err
}

func (f *fakeStore) Get(ctx context.Context, name string) (*record.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, rec := range f.records {
		if rec.Name == name {
			return rec, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), f.err
}

type fakeLocator struct {
	calls []string
}

func (f *fakeLocator) Locate(ctx context.Context, accountID, contractName, claimPeriod string) *record.Record {
	f.calls = append(f.calls, accountID+"|"+contractName+"|"+claimPeriod)
	if accountID == "alice.tg" {
		return &record.Record{Name: accountID, Hash: record.StringPtr("h1")}
	}
	return record.Placeholder(accountID)
}

type fakeStatus worker.Status

func (f fakeStatus) Status() worker.Status { return worker.Status(f) }

var cached = []*record.Record{
	{Name: "alice.tg", Hash: record.StringPtr("h1"), Quantity: record.FloatPtr(2.5), ClaimPeriod: record.IntPtr(10)},
	{Name: "bob.tg"},
}

func newTestServer(store RecordStore, locator worker.Locator, status StatusProvider) http.Handler {
	return New(":0", store, locator, "game.hot.tg", status, nil, nil).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	w := get(t, newTestServer(&fakeStore{}, nil, nil), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestListRecords(t *testing.T) {
	t.Run("returns cached rows in order", func(t *testing.T) {
		w := get(t, newTestServer(&fakeStore{records: cached}, nil, nil), "/api/v1/records")
		require.Equal(t, http.StatusOK, w.Code)

		var resp recordsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 2, resp.Count)
		assert.Equal(t, "alice.tg", resp.Records[0].Name)
		assert.Equal(t, "h1", *resp.Records[0].Hash)
		assert.Equal(t, "bob.tg", resp.Records[1].Name)
		assert.True(t, resp.Records[1].IsPlaceholder())
	})

	t.Run("empty cache is an empty list", func(t *testing.T) {
		w := get(t, newTestServer(&fakeStore{}, nil, nil), "/api/v1/records")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"records":[],"count":0}`, w.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		w := get(t, newTestServer(&fakeStore{err: errors.New("pool closed")}, nil, nil), "/api/v1/records")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pool closed")
	})
}

func TestGetRecord(t *testing.T) {
	h := newTestServer(&fakeStore{records: cached}, nil, nil)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "found", path: "/api/v1/records/alice.tg", wantCode: http.StatusOK},
		{name: "not found", path: "/api/v1/records/carol.tg", wantCode: http.StatusNotFound},
		{name: "uppercase rejected", path: "/api/v1/records/Alice.tg", wantCode: http.StatusBadRequest},
		{name: "too short", path: "/api/v1/records/a", wantCode: http.StatusBadRequest},
		{name: "double dot", path: "/api/v1/records/alice..tg", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, tt.path)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestLocate(t *testing.T) {
	t.Run("disabled without locator", func(t *testing.T) {
		w := get(t, newTestServer(&fakeStore{}, nil, nil), "/api/v1/locate/alice.tg")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("passes contract and claim period", func(t *testing.T) {
		locator := &fakeLocator{}
		w := get(t, newTestServer(&fakeStore{}, locator, nil), "/api/v1/locate/alice.tg?claim_period=10")
		require.Equal(t, http.StatusOK, w.Code)

		var resp locateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Found)
		assert.Equal(t, "h1", *resp.Record.Hash)
		assert.Equal(t, []string{"alice.tg|game.hot.tg|10"}, locator.calls)
	})

	t.Run("placeholder is not found", func(t *testing.T) {
		w := get(t, newTestServer(&fakeStore{}, &fakeLocator{}, nil), "/api/v1/locate/bob.tg")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"record":{"name":"bob.tg"},"found":false}`, w.Body.String())
	})
}

func TestStatus(t *testing.T) {
	t.Run("cache only", func(t *testing.T) {
		w := get(t, newTestServer(&fakeStore{records: cached}, nil, nil), "/api/v1/status")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"cached_records":2}`, w.Body.String())
	})

	t.Run("with runner", func(t *testing.T) {
		status := fakeStatus{State: worker.StateSleeping, CyclesCompleted: 3, LastRows: 2}
		w := get(t, newTestServer(&fakeStore{records: cached}, nil, status), "/api/v1/status")
		require.Equal(t, http.StatusOK, w.Code)

		var resp statusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Runner)
		assert.Equal(t, worker.StateSleeping, resp.Runner.State)
		assert.Equal(t, 3, resp.Runner.CyclesCompleted)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	h := New(":0", &fakeStore{records: cached}, nil, "game.hot.tg", nil, m, nil).WithGatherer(registry).Handler()

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/records").Code)

	w := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{handler="/api/v1/records",method="GET",status="2xx"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/records", nil)
	w := httptest.NewRecorder()
	newTestServer(&fakeStore{}, nil, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
