// Package store keeps an advisory run ledger in SQLite: one row per pipeline
// run, one row per record outcome. The JSONL output file remains the
// canonical result; the ledger only feeds the stats command.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default ledger location.
const DefaultDBPath = "~/.verilim/verilim.db"

// Run is one pipeline invocation.
type Run struct {
	ID           string
	InputPath    string
	OutputPath   string
	Model        string
	StartedAt    time.Time
	FinishedAt   *time.Time
	RecordsTotal int
	RecordsOK    int
}

// RecordResult is one record outcome within a run.
type RecordResult struct {
	ID            int64
	RunID         string
	Index         int
	Title         string
	Processed     bool
	Items         int
	Rows          int
	FailureReason string
	CreatedAt     time.Time
}

// Stats summarizes the ledger for the stats command.
type Stats struct {
	Runs         int64
	Records      int64
	Processed    int64
	Failed       int64
	TopFailures  []FailureCount
	LastFinished *time.Time
}

// FailureCount is one failure_reason with its occurrence count.
type FailureCount struct {
	Reason string
	Count  int64
}

// Store is the ledger handle.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the ledger at dbPath. An empty path resolves to
// DefaultDBPath with ~ expanded.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	dbPath = expandPath(dbPath)

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input_path TEXT NOT NULL,
			output_path TEXT NOT NULL,
			model TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			records_total INTEGER NOT NULL DEFAULT 0,
			records_ok INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS record_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			record_index INTEGER NOT NULL,
			title TEXT NOT NULL,
			processed INTEGER NOT NULL,
			items INTEGER NOT NULL,
			validation_rows INTEGER NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_record_results_run ON record_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_record_results_failure ON record_results(failure_reason)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a pipeline run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, inputPath, outputPath, model string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, output_path, model, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, inputPath, outputPath, model, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// FinishRun closes out a run with its totals.
func (s *Store) FinishRun(ctx context.Context, runID string, total, ok int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, records_total = ?, records_ok = ? WHERE id = ?`,
		time.Now().UTC(), total, ok, runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// AddResult appends one record outcome to the run.
func (s *Store) AddResult(ctx context.Context, r *RecordResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO record_results (run_id, record_index, title, processed, items, validation_rows, failure_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Index, r.Title, boolToInt(r.Processed), r.Items, r.Rows, r.FailureReason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting record result: %w", err)
	}
	return nil
}

// GetStats aggregates the ledger.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&stats.Runs); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(processed), 0),
		        COALESCE(SUM(CASE WHEN processed = 0 THEN 1 ELSE 0 END), 0)
		 FROM record_results`).
		Scan(&stats.Records, &stats.Processed, &stats.Failed)
	if err != nil {
		return nil, fmt.Errorf("counting record results: %w", err)
	}

	var last sql.NullTime
	err = s.db.QueryRowContext(ctx, `SELECT MAX(finished_at) FROM runs`).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("reading last run: %w", err)
	}
	if last.Valid {
		stats.LastFinished = &last.Time
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT failure_reason, COUNT(*) AS n
		 FROM record_results
		 WHERE failure_reason != ''
		 GROUP BY failure_reason
		 ORDER BY n DESC
		 LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fc FailureCount
		if err := rows.Scan(&fc.Reason, &fc.Count); err != nil {
			return nil, fmt.Errorf("scanning failure row: %w", err)
		}
		stats.TopFailures = append(stats.TopFailures, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating failures: %w", err)
	}
	return stats, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
