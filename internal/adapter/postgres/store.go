// Package postgres implements the warehouse store: the raw landing table,
// the type-2 weather dimension, and the daily summary reporting table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/domain"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Store reads and writes the warehouse tables.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store over an established connection pool.
func New(db DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Connect opens a pgx pool for the given URL and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Ping reports warehouse reachability, used by the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// LandObservations appends freshly fetched observations to the raw landing
// table. Rows are immutable once written; the database assigns the insertion
// sequence and inserted_at stamp.
func (s *Store) LandObservations(ctx context.Context, observations []domain.Observation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin landing tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	const q = `
		INSERT INTO raw_weather_data (city, temperature, weather_description, wind_speed, observed_at, utc_offset)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var landed int64
	for _, o := range observations {
		if _, err := tx.Exec(ctx, q, o.City, o.Temperature, o.Description, o.WindSpeed, o.Timestamp, o.UTCOffset); err != nil {
			return 0, fmt.Errorf("land observation for %q: %w", o.City, err)
		}
		landed++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit landing tx: %w", err)
	}
	return landed, nil
}

// RawObservations returns the full landing table in insertion order. The
// dedup stage operates over all previously seen rows, so re-runs restate the
// same result.
func (s *Store) RawObservations(ctx context.Context) ([]domain.Observation, error) {
	const q = `
		SELECT id, city, temperature, weather_description, wind_speed, observed_at, utc_offset, inserted_at
		FROM raw_weather_data
		ORDER BY id`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query raw observations: %w", err)
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(&o.ID, &o.City, &o.Temperature, &o.Description, &o.WindSpeed, &o.Timestamp, &o.UTCOffset, &o.InsertedAt); err != nil {
			return nil, fmt.Errorf("scan raw observation: %w", err)
		}
		o.Seq = o.ID
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw observations: %w", err)
	}
	return out, nil
}

// ErrConcurrentClose reports that a close touched zero rows, meaning another
// run superseded the row between read and write. The transaction is rolled
// back and the whole run retried on the next tick.
var ErrConcurrentClose = errors.New("dimension row already closed by a concurrent run")

// ReconcileDimension runs one reconciliation pass inside a single
// transaction. It locks the open rows for the affected cities with FOR
// UPDATE, hands them to decide, and applies the returned change set. Closes
// and inserts commit together or not at all, so no reader observes a city
// with zero or two current rows.
func (s *Store) ReconcileDimension(ctx context.Context, cities []string, decide func(current []domain.DimensionRecord) (domain.ChangeSet, error)) (domain.ChangeSet, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.ChangeSet{}, fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	current, err := lockCurrentRows(ctx, tx, cities)
	if err != nil {
		return domain.ChangeSet{}, err
	}

	cs, err := decide(current)
	if err != nil {
		return domain.ChangeSet{}, err
	}

	const closeQ = `
		UPDATE weather_dimension
		SET is_current = FALSE, valid_to = $2
		WHERE surrogate_key = $1 AND is_current`

	for _, c := range cs.Closes {
		tag, err := tx.Exec(ctx, closeQ, c.SurrogateKey, c.ValidTo)
		if err != nil {
			return domain.ChangeSet{}, fmt.Errorf("close dimension row %s: %w", c.SurrogateKey, err)
		}
		if tag.RowsAffected() != 1 {
			return domain.ChangeSet{}, fmt.Errorf("close dimension row %s (city %q): %w", c.SurrogateKey, c.City, ErrConcurrentClose)
		}
	}

	const insertQ = `
		INSERT INTO weather_dimension
			(surrogate_key, city, observation_id, observed_at, temperature, description, wind_speed, content_hash, valid_from, valid_to, is_current)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, r := range cs.Inserts {
		if _, err := tx.Exec(ctx, insertQ,
			r.SurrogateKey, r.City, r.ObservationID, r.Timestamp,
			r.Temperature, r.Description, r.WindSpeed, r.ContentHash,
			r.ValidFrom, r.ValidTo, r.IsCurrent,
		); err != nil {
			return domain.ChangeSet{}, fmt.Errorf("insert dimension row for %q: %w", r.City, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ChangeSet{}, fmt.Errorf("commit reconcile tx: %w", err)
	}
	return cs, nil
}

func lockCurrentRows(ctx context.Context, tx pgx.Tx, cities []string) ([]domain.DimensionRecord, error) {
	const q = `
		SELECT surrogate_key, city, observation_id, observed_at, temperature, description, wind_speed, content_hash, valid_from, valid_to, is_current
		FROM weather_dimension
		WHERE is_current AND city = ANY($1)
		ORDER BY city
		FOR UPDATE`

	rows, err := tx.Query(ctx, q, cities)
	if err != nil {
		return nil, fmt.Errorf("lock current dimension rows: %w", err)
	}
	defer rows.Close()

	var out []domain.DimensionRecord
	for rows.Next() {
		var r domain.DimensionRecord
		if err := rows.Scan(&r.SurrogateKey, &r.City, &r.ObservationID, &r.Timestamp,
			&r.Temperature, &r.Description, &r.WindSpeed, &r.ContentHash,
			&r.ValidFrom, &r.ValidTo, &r.IsCurrent); err != nil {
			return nil, fmt.Errorf("scan dimension row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dimension rows: %w", err)
	}
	return out, nil
}

// ReplaceDailySummary restates the reporting table wholesale from the given
// rows, inside one transaction so readers never see a half-built table.
func (s *Store) ReplaceDailySummary(ctx context.Context, rows []domain.DailySummary) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin summary tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `TRUNCATE daily_weather_summary`); err != nil {
		return fmt.Errorf("truncate daily summary: %w", err)
	}

	const q = `
		INSERT INTO daily_weather_summary (city, summary_date, avg_temp, avg_wind, sample_count)
		VALUES ($1, $2, $3, $4, $5)`

	for _, r := range rows {
		if _, err := tx.Exec(ctx, q, r.City, r.Date, r.AvgTemp, r.AvgWind, r.SampleCount); err != nil {
			return fmt.Errorf("insert daily summary for %q: %w", r.City, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit summary tx: %w", err)
	}
	return nil
}

// DuplicateCurrentCities returns cities holding more than one current
// dimension row, with the offending row counts.
func (s *Store) DuplicateCurrentCities(ctx context.Context) (map[string]int, error) {
	const q = `
		SELECT city, COUNT(*)
		FROM weather_dimension
		WHERE is_current
		GROUP BY city
		HAVING COUNT(*) > 1`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query duplicate current rows: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var city string
		var n int
		if err := rows.Scan(&city, &n); err != nil {
			return nil, fmt.Errorf("scan duplicate current row: %w", err)
		}
		out[city] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate current rows: %w", err)
	}
	return out, nil
}

// CountNullRequired returns the number of dimension rows missing a required
// field.
func (s *Store) CountNullRequired(ctx context.Context) (int64, error) {
	const q = `
		SELECT COUNT(*)
		FROM weather_dimension
		WHERE city IS NULL OR city = '' OR content_hash IS NULL OR content_hash = ''
		   OR valid_from IS NULL OR valid_to IS NULL`

	var n int64
	if err := s.db.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count null required fields: %w", err)
	}
	return n, nil
}

// CountSentinelMismatch returns rows whose valid_to disagrees with their
// is_current flag: open rows must carry the sentinel, closed rows must not.
func (s *Store) CountSentinelMismatch(ctx context.Context) (int64, error) {
	const q = `
		SELECT COUNT(*)
		FROM weather_dimension
		WHERE (is_current AND valid_to <> $1)
		   OR (NOT is_current AND valid_to = $1)`

	var n int64
	if err := s.db.QueryRow(ctx, q, domain.SentinelValidTo).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sentinel mismatches: %w", err)
	}
	return n, nil
}
