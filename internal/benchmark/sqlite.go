package benchmark

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps runs in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS benchmark_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	template TEXT NOT NULL,
	variant TEXT NOT NULL CHECK (variant IN ('baseline', 'specialist')),
	model TEXT NOT NULL DEFAULT '',
	task TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_benchmark_runs_template ON benchmark_runs(template, recorded_at)
`

// OpenSQLite opens (creating if needed) the results database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate benchmark schema: %w", err)
		}
	}
	return nil
}

// Record inserts a run and returns its id. A zero RecordedAt means now.
func (s *SQLiteStore) Record(ctx context.Context, run Run) (int64, error) {
	if run.RecordedAt.IsZero() {
		run.RecordedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO benchmark_runs (template, variant, model, task, score, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.Template, run.Variant, run.Model, run.Task, run.Score, run.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to record benchmark run: %w", err)
	}
	return res.LastInsertId()
}

// Runs returns every run for a template, oldest first.
func (s *SQLiteStore) Runs(ctx context.Context, templateName string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template, variant, model, task, score, recorded_at FROM benchmark_runs WHERE template = ? ORDER BY recorded_at, id`,
		templateName)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var recorded string
		if err := rows.Scan(&r.ID, &r.Template, &r.Variant, &r.Model, &r.Task, &r.Score, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark run: %w", err)
		}
		if r.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
			return nil, fmt.Errorf("benchmark run %d has bad timestamp %q: %w", r.ID, recorded, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
