// Package timings records how long each frame update took and summarizes runs.
package timings

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// CommitBatchSize is the number of frames buffered in one transaction.
const CommitBatchSize = 1_000

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at INTEGER NOT NULL,
	algorithm  TEXT    NOT NULL,
	agents     INTEGER NOT NULL,
	threads    INTEGER NOT NULL,
	label      TEXT    NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS frames (
	run_id    INTEGER NOT NULL REFERENCES runs(id),
	frame     INTEGER NOT NULL,
	update_ns INTEGER NOT NULL,
	PRIMARY KEY (run_id, frame)
);`

// ErrClosed is returned by a Store used after Close.
var ErrClosed = errors.New("timings store is closed")

// Run describes one benchmark run.
type Run struct {
	ID        int64
	StartedAt time.Time
	Algorithm string
	Agents    int
	Threads   int
	Label     string
}

// Store persists frame timings in a SQLite database.
type Store struct {
	db         *sql.DB
	currentTx  *sql.Tx
	insertStmt *sql.Stmt
	pending    int
}

// Open opens or creates the database at path. ":memory:" keeps everything in memory.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timings database: %w", err)
	}
	// One connection, so an in-memory database is the same for every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure timings database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// BeginRun registers a new run and returns its id.
func (s *Store) BeginRun(r Run) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	if err := s.Flush(); err != nil {
		return 0, err
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	res, err := s.db.Exec(`INSERT INTO runs (started_at, algorithm, agents, threads, label) VALUES (?, ?, ?, ?, ?)`,
		r.StartedAt.UnixNano(), r.Algorithm, r.Agents, r.Threads, r.Label)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return res.LastInsertId()
}

// Record adds the update duration of one frame to a run. Frames are committed in batches.
func (s *Store) Record(run int64, frame int, d time.Duration) error {
	if s.db == nil {
		return ErrClosed
	}
	if s.currentTx == nil {
		if err := s.begin(); err != nil {
			return err
		}
	}
	if _, err := s.insertStmt.Exec(run, frame, d.Nanoseconds()); err != nil {
		s.rollback()
		return fmt.Errorf("failed to record frame %d of run %d: %w", frame, run, err)
	}
	s.pending++
	if s.pending >= CommitBatchSize {
		return s.Flush()
	}
	return nil
}

func (s *Store) begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO frames (run_id, frame, update_ns) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare frame insert: %w", err)
	}
	s.currentTx, s.insertStmt = tx, stmt
	return nil
}

func (s *Store) rollback() {
	if s.currentTx != nil {
		s.insertStmt.Close()
		s.currentTx.Rollback()
		s.currentTx, s.insertStmt, s.pending = nil, nil, 0
	}
}

// Flush commits the frames recorded so far.
func (s *Store) Flush() error {
	if s.currentTx == nil {
		return nil
	}
	s.insertStmt.Close()
	err := s.currentTx.Commit()
	s.currentTx, s.insertStmt, s.pending = nil, nil, 0
	if err != nil {
		return fmt.Errorf("failed to commit frames: %w", err)
	}
	return nil
}

// Runs lists every recorded run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT id, started_at, algorithm, agents, threads, label FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &started, &r.Algorithm, &r.Agents, &r.Threads, &r.Label); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Durations returns the frame times of a run in frame order.
func (s *Store) Durations(run int64) ([]time.Duration, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT update_ns FROM frames WHERE run_id = ? ORDER BY frame`, run)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames of run %d: %w", run, err)
	}
	defer rows.Close()

	var out []time.Duration
	for rows.Next() {
		var ns int64
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		out = append(out, time.Duration(ns))
	}
	return out, rows.Err()
}

// Close commits pending frames and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.Flush()
	err = errors.Join(err, s.db.Close())
	s.db = nil
	return err
}
