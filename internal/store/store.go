// Package store persists benchmark results between runs.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	ts             TEXT NOT NULL,
	target         TEXT NOT NULL,
	initial_ms     INTEGER NOT NULL,
	incremental_ms INTEGER NOT NULL,
	browser_ms     INTEGER
);`

// Run is one recorded benchmark run. BrowserMS is nil when no URL was
// given for that run.
type Run struct {
	ID            int64
	Timestamp     time.Time
	Target        string
	InitialMS     int64
	IncrementalMS int64
	BrowserMS     *int64
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends one run to the history.
func (s *Store) Record(r Run) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var browser sql.NullInt64
	if r.BrowserMS != nil {
		browser = sql.NullInt64{Int64: *r.BrowserMS, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (ts, target, initial_ms, incremental_ms, browser_ms) VALUES (?, ?, ?, ?, ?)`,
		ts.Format(time.RFC3339), r.Target, r.InitialMS, r.IncrementalMS, browser,
	)
	if err != nil {
		return fmt.Errorf("store: record run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, ts, target, initial_ms, incremental_ms, browser_ms
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			ts      string
			browser sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &ts, &r.Target, &r.InitialMS, &r.IncrementalMS, &browser); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			r.Timestamp = t
		}
		if browser.Valid {
			v := browser.Int64
			r.BrowserMS = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
