package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amr0ny/bc-parser/service/record"
)

// pagedExecutor serves one page per Query call and fails once pages run out.
type pagedExecutor struct {
	pages    [][]string
	queryErr error
	queries  []int64
}

func (e *pagedExecutor) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (e *pagedExecutor) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (e *pagedExecutor) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	e.queries = append(e.queries, args[0].(int64))
	n := len(e.queries)
	if n > len(e.pages) {
		return nil, e.queryErr
	}
	start := int64(0)
	for _, p := range e.pages[:n-1] {
		start += int64(len(p))
	}
	return &nameRows{names: e.pages[n-1], firstID: start + 1, pos: -1}, nil
}

// nameRows yields (id, name) rows; every other column scans as NULL.
type nameRows struct {
	names   []string
	firstID int64
	pos     int
}

func (r *nameRows) Close()                                       {}
func (r *nameRows) Err() error                                   { return nil }
func (r *nameRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *nameRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *nameRows) Values() ([]any, error)                       { return nil, nil }
func (r *nameRows) RawValues() [][]byte                          { return nil }
func (r *nameRows) Conn() *pgx.Conn                              { return nil }

func (r *nameRows) Next() bool {
	r.pos++
	return r.pos < len(r.names)
}

func (r *nameRows) Scan(dest ...any) error {
	*dest[0].(*int64) = r.firstID + int64(r.pos)
	*dest[1].(*string) = r.names[r.pos]
	return nil
}

func TestReadPages_QueryErrorEndsIteration(t *testing.T) {
	exec := &pagedExecutor{
		pages:    [][]string{{"a.tg", "b.tg"}},
		queryErr: errors.New("connection reset"),
	}
	store := NewStore(nil, nil, nil)
	store.q = exec

	var batches [][]*record.Record
	for batch := range store.ReadPages(context.Background(), 2) {
		batches = append(batches, batch)
	}

	require.Len(t, batches, 1, "the page before the failure is still delivered")
	assert.Equal(t, "a.tg", batches[0][0].Name)
	assert.Equal(t, "b.tg", batches[0][1].Name)
	assert.Equal(t, []int64{0, 2}, exec.queries, "second page is keyed after the last id")
}

func TestReadPages_FirstQueryErrorYieldsNothing(t *testing.T) {
	exec := &pagedExecutor{queryErr: errors.New("relation \"records\" does not exist")}
	store := NewStore(nil, nil, nil)
	store.q = exec

	seen := 0
	for range store.ReadPages(context.Background(), 2) {
		seen++
	}
	assert.Zero(t, seen)
	assert.Len(t, exec.queries, 1)
}
