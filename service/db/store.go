package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
)

//go:embed schema.sql
var schemaSQL string

// DefaultPageSize is used by ReadPages when pageSize is not positive.
const DefaultPageSize = 100

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Executor is implemented by both *pgxpool.Pool and *pgxpool.Conn.
// This allows the same queries to run on the pool or on a connection held for a cycle.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides the record cache operations.
type Store struct {
	pool    *pgxpool.Pool
	q       Executor
	conn    *pgxpool.Conn
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Store{
		pool:    pool,
		q:       pool,
		logger:  logger,
		metrics: m,
	}
}

// Acquire returns a Store bound to a single pooled connection.
// The caller must call Release on every exit path.
func (s *Store) Acquire(ctx context.Context) (*Store, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Store{
		pool:    s.pool,
		q:       conn,
		conn:    conn,
		logger:  s.logger,
		metrics: s.metrics,
	}, nil
}

// Release returns the held connection to the pool. It is a no-op on a pool-backed Store.
func (s *Store) Release() {
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
		s.q = s.pool
	}
}

// EnsureSchema creates the records table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertFields holds the optional columns of an upsert. Nil fields are left untouched on update.
type UpsertFields struct {
	Hash        *string
	Quantity    *float64
	NearAmount  *float64
	HotAmount   *float64
	Age         *string
	ClaimPeriod *int
}

// FieldsOf returns the upsert fields carried by rec.
func FieldsOf(rec *record.Record) UpsertFields {
	return UpsertFields{
		Hash:        rec.Hash,
		Quantity:    rec.Quantity,
		NearAmount:  rec.NearAmount,
		HotAmount:   rec.HotAmount,
		Age:         rec.Age,
		ClaimPeriod: rec.ClaimPeriod,
	}
}

// Empty reports whether no field is set.
func (f UpsertFields) Empty() bool {
	return f.Hash == nil && f.Quantity == nil && f.NearAmount == nil &&
		f.HotAmount == nil && f.Age == nil && f.ClaimPeriod == nil
}

// Reset deletes every cached record. It is idempotent.
func (s *Store) Reset(ctx context.Context) error {
	start := time.Now()
	_, err := s.q.Exec(ctx, "DELETE FROM records")
	s.metrics.RecordDBQuery("reset", "records", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("failed to reset records: %w", err)
	}
	return nil
}

const upsertSQL = `
INSERT INTO records (name, hash, quantity, near_amount, hot_amount, age, claim_period)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO UPDATE SET
    hash         = COALESCE(EXCLUDED.hash, records.hash),
    quantity     = COALESCE(EXCLUDED.quantity, records.quantity),
    near_amount  = COALESCE(EXCLUDED.near_amount, records.near_amount),
    hot_amount   = COALESCE(EXCLUDED.hot_amount, records.hot_amount),
    age          = COALESCE(EXCLUDED.age, records.age),
    claim_period = COALESCE(EXCLUDED.claim_period, records.claim_period),
    updated_at   = NOW()`

const insertOnlySQL = `INSERT INTO records (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`

// Upsert inserts the record when name is new, otherwise updates only the non-nil fields.
// A new name is inserted even when fields is empty; an existing name with empty
// fields is left unchanged and a warning is logged.
func (s *Store) Upsert(ctx context.Context, name string, fields UpsertFields) error {
	start := time.Now()

	if fields.Empty() {
		tag, err := s.q.Exec(ctx, insertOnlySQL, name)
		s.metrics.RecordDBQuery("upsert", "records", time.Since(start).Seconds(), err)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", name, err)
		}
		if tag.RowsAffected() == 0 {
			s.logger.WarnContext(ctx, "no fields to update", "name", name)
		}
		return nil
	}

	_, err := s.q.Exec(ctx, upsertSQL,
		name,
		fields.Hash,
		fields.Quantity,
		fields.NearAmount,
		fields.HotAmount,
		fields.Age,
		fields.ClaimPeriod,
	)
	s.metrics.RecordDBQuery("upsert", "records", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", name, err)
	}
	return nil
}

const selectColumns = `id, name, hash, quantity, age, near_amount, hot_amount, claim_period`

// ReadPages returns a lazy sequence of record batches of at most pageSize rows, in
// insertion order. A query error is logged and ends the sequence.
func (s *Store) ReadPages(ctx context.Context, pageSize int) iter.Seq[[]*record.Record] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return func(yield func([]*record.Record) bool) {
		var lastID int64
		for {
			start := time.Now()
			batch, maxID, err := s.readPage(ctx, lastID, pageSize)
			s.metrics.RecordDBQuery("read_page", "records", time.Since(start).Seconds(), err)
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to read records page",
					"after_id", lastID,
					"error", err,
				)
				return
			}
			if len(batch) == 0 {
				return
			}
			if !yield(batch) {
				return
			}
			if len(batch) < pageSize {
				return
			}
			lastID = maxID
		}
	}
}

func (s *Store) readPage(ctx context.Context, afterID int64, limit int) ([]*record.Record, int64, error) {
	rows, err := s.q.Query(ctx,
		"SELECT "+selectColumns+" FROM records WHERE id > $1 ORDER BY id LIMIT $2",
		afterID, limit,
	)
	if err != nil {
		return nil, afterID, err
	}
	defer rows.Close()

	maxID := afterID
	var batch []*record.Record
	for rows.Next() {
		var id int64
		rec, err := scanRecord(rows, &id)
		if err != nil {
			return nil, afterID, err
		}
		maxID = id
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, afterID, err
	}
	return batch, maxID, nil
}

// List returns every cached record in insertion order.
func (s *Store) List(ctx context.Context) ([]*record.Record, error) {
	var all []*record.Record
	for batch := range s.ReadPages(ctx, DefaultPageSize) {
		all = append(all, batch...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

// Get returns the cached record for name, or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (*record.Record, error) {
	start := time.Now()
	row := s.q.QueryRow(ctx, "SELECT "+selectColumns+" FROM records WHERE name = $1", name)

	var id int64
	rec, err := scanRecord(row, &id)
	s.metrics.RecordDBQuery("get", "records", time.Since(start).Seconds(), err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", name, err)
	}
	return rec, nil
}

// Count returns the number of cached records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func scanRecord(row pgx.Row, id *int64) (*record.Record, error) {
	rec := &record.Record{}
	err := row.Scan(
		id,
		&rec.Name,
		&rec.Hash,
		&rec.Quantity,
		&rec.Age,
		&rec.NearAmount,
		&rec.HotAmount,
		&rec.ClaimPeriod,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
