// SPDX-License-Identifier: MIT

// Package store is the run's metrics and checkpoint sink, backed by SQLite
// (modernc.org/sqlite, pure Go). Every row carries the run identifier, so
// several runs can share one database file.
//
// Tables:
//
//	runs(run_id, started)
//	scalars(run_id, step, name, value)        -- NULL value reads as NaN
//	matrices(run_id, step, name, value)       -- JSON-encoded matrix
//	summary(run_id, key, value)               -- JSON, last write wins
//	checkpoints(run_id, filename, saved, state) -- JSON, last write wins
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/katalvlaran/causalid/matrix"
)

// Memory opens a private in-memory database.
const Memory = ":memory:"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")

	// ErrBadNumber is returned for a stored matrix entry that is neither a
	// number nor one of "NaN", "+Inf", "-Inf".
	ErrBadNumber = errors.New("store: bad number")
)

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	run_id TEXT PRIMARY KEY,
	started REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS scalars(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	name TEXT NOT NULL,
	value REAL
);
CREATE INDEX IF NOT EXISTS scalars_run_name ON scalars(run_id, name, step);
CREATE TABLE IF NOT EXISTS matrices(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS summary(
	run_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY(run_id, key)
);
CREATE TABLE IF NOT EXISTS checkpoints(
	run_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	saved REAL NOT NULL,
	state TEXT NOT NULL,
	PRIMARY KEY(run_id, filename)
);`

// Option configures Open.
type Option func(*Store)

// WithRunID reuses an existing run identifier instead of minting one.
func WithRunID(id string) Option { return func(s *Store) { s.runID = id } }

// Store is a SQLite-backed sink. Not safe for concurrent use.
type Store struct {
	db    *sql.DB
	runID string
}

// Open opens (creating if needed) the database at path and registers the run.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	// One connection: an in-memory database is per connection.
	db.SetMaxOpenConns(1)
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store.Open: schema: %w", err)
	}
	s := &Store{db: db, runID: uuid.NewString()}
	for _, opt := range opts {
		opt(s)
	}
	if _, err = db.ExecContext(ctx, "INSERT OR IGNORE INTO runs(run_id, started) VALUES(?, ?)", s.runID, now()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store.Open: register run: %w", err)
	}

	return s, nil
}

func now() float64 { return float64(time.Now().UnixMilli()) / 1000 }

// RunID returns the identifier every row is tagged with.
func (s *Store) RunID() string { return s.runID }

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil

	return err
}

func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	return s.db, nil
}

// LogScalars records values at step in one transaction, in name order.
func (s *Store) LogScalars(ctx context.Context, step int, values map[string]float64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.LogScalars: %w", err)
	}
	for _, name := range names {
		var v any = values[name]
		if math.IsNaN(values[name]) {
			v = nil // read back as NaN
		}
		if _, err = tx.ExecContext(ctx, "INSERT INTO scalars(run_id, step, name, value) VALUES(?, ?, ?, ?)",
			s.runID, step, name, v); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store.LogScalars: %s: %w", name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store.LogScalars: %w", err)
	}

	return nil
}

// Point is one logged scalar.
type Point struct {
	Step  int
	Value float64
}

// Scalars returns the history of name in step order.
func (s *Store) Scalars(ctx context.Context, name string) ([]Point, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT step, value FROM scalars WHERE run_id = ? AND name = ? ORDER BY step, id", s.runID, name)
	if err != nil {
		return nil, fmt.Errorf("store.Scalars: %w", err)
	}
	defer rows.Close()
	var out []Point
	for rows.Next() {
		var (
			p Point
			v sql.NullFloat64
		)
		if err = rows.Scan(&p.Step, &v); err != nil {
			return nil, fmt.Errorf("store.Scalars: %w", err)
		}
		p.Value = math.NaN()
		if v.Valid {
			p.Value = v.Float64
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

// LogMatrix records m under name at step.
func (s *Store) LogMatrix(ctx context.Context, step int, name string, m *matrix.Dense) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	blob, err := json.Marshal(encode(m))
	if err != nil {
		return fmt.Errorf("store.LogMatrix: %w", err)
	}
	if _, err = db.ExecContext(ctx, "INSERT INTO matrices(run_id, step, name, value) VALUES(?, ?, ?, ?)",
		s.runID, step, name, string(blob)); err != nil {
		return fmt.Errorf("store.LogMatrix: %w", err)
	}

	return nil
}

// LatestMatrix returns the most recent matrix logged under name and its step.
// Errors: ErrNotFound.
func (s *Store) LatestMatrix(ctx context.Context, name string) (*matrix.Dense, int, error) {
	db, err := s.conn()
	if err != nil {
		return nil, 0, err
	}
	var (
		step int
		blob string
	)
	err = db.QueryRowContext(ctx,
		"SELECT step, value FROM matrices WHERE run_id = ? AND name = ? ORDER BY id DESC LIMIT 1",
		s.runID, name).Scan(&step, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("store.LatestMatrix: %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store.LatestMatrix: %w", err)
	}
	m, err := decodeJSON(blob)
	if err != nil {
		return nil, 0, fmt.Errorf("store.LatestMatrix: %w", err)
	}

	return m, step, nil
}

// LogSummary stores value (JSON-encoded) under key, replacing any previous one.
func (s *Store) LogSummary(ctx context.Context, key string, value any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	blob, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store.LogSummary: %s: %w", key, err)
	}
	if _, err = db.ExecContext(ctx, "INSERT OR REPLACE INTO summary(run_id, key, value) VALUES(?, ?, ?)",
		s.runID, key, string(blob)); err != nil {
		return fmt.Errorf("store.LogSummary: %w", err)
	}

	return nil
}

// Summary decodes the value stored under key into dst.
// Errors: ErrNotFound.
func (s *Store) Summary(ctx context.Context, key string, dst any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	var blob string
	err = db.QueryRowContext(ctx, "SELECT value FROM summary WHERE run_id = ? AND key = ?", s.runID, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store.Summary: %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store.Summary: %w", err)
	}
	if err = json.Unmarshal([]byte(blob), dst); err != nil {
		return fmt.Errorf("store.Summary: %w", err)
	}

	return nil
}
