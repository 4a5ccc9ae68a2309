// Package history keeps a SQLite log of completed runs.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/dkoosis/verifyapi/pkg/report"
	"github.com/dkoosis/verifyapi/pkg/results"
)

// DefaultFile is the database name inside the output root.
const DefaultFile = "history.db"

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded run.
type Entry struct {
	RunID           string
	CreatedAt       time.Time
	ContractPath    string
	Title           string
	Kind            string
	Provider        string
	Status          string
	Passed          int
	Failed          int
	Errors          int
	Skipped         int
	Unknown         int
	DurationSeconds float64
	OutputDir       string
}

// Total is the number of test cases in the run.
func (e Entry) Total() int {
	return e.Passed + e.Failed + e.Errors + e.Skipped + e.Unknown
}

// PassRate is the share of passed cases in percent; 0 for empty runs.
func (e Entry) PassRate() float64 {
	if e.Total() == 0 {
		return 0
	}
	return float64(e.Passed) * 100 / float64(e.Total())
}

// EntryFrom summarizes a run report.
func EntryFrom(r *report.RunReport) Entry {
	return Entry{
		RunID:           r.RunID,
		CreatedAt:       r.CreatedAt,
		ContractPath:    r.Contract.Path,
		Title:           r.Contract.Title,
		Kind:            string(r.Kind),
		Provider:        r.Provider,
		Status:          string(r.Status),
		Passed:          r.Counts[results.Passed],
		Failed:          r.Counts[results.Failed],
		Errors:          r.Counts[results.Error],
		Skipped:         r.Counts[results.Skipped],
		Unknown:         r.Counts[results.Unknown],
		DurationSeconds: r.Execution.DurationSeconds,
		OutputDir:       r.Execution.OutputDir,
	}
}

// Store is safe for concurrent use by batch runs.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	contract_path TEXT NOT NULL,
	title TEXT,
	kind TEXT NOT NULL,
	provider TEXT,
	status TEXT NOT NULL,
	passed INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	unknown INTEGER NOT NULL DEFAULT 0,
	duration_seconds REAL NOT NULL DEFAULT 0,
	output_dir TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_contract ON runs(contract_path, created_at);
`

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history schema")
	}
	return &Store{db: db, path: path}, nil
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Record appends e. Recording the same run twice is an error.
func (s *Store) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(run_id, created_at, contract_path, title, kind, provider, status,
		 passed, failed, errors, skipped, unknown, duration_seconds, output_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.CreatedAt.UTC().Format(timeLayout), e.ContractPath, e.Title, e.Kind, e.Provider, e.Status,
		e.Passed, e.Failed, e.Errors, e.Skipped, e.Unknown, e.DurationSeconds, e.OutputDir)
	return errors.Wrapf(err, "record run %s", e.RunID)
}

// Recent returns up to limit runs, newest first. A non-empty contract path
// restricts the result to that contract.
func (s *Store) Recent(ctx context.Context, limit int, contractPath string) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT run_id, created_at, contract_path, COALESCE(title, ''), kind, COALESCE(provider, ''), status,
		passed, failed, errors, skipped, unknown, duration_seconds, COALESCE(output_dir, '')
		FROM runs`
	args := []any{}
	if contractPath != "" {
		query += ` WHERE contract_path = ?`
		args = append(args, contractPath)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.RunID, &created, &e.ContractPath, &e.Title, &e.Kind, &e.Provider, &e.Status,
			&e.Passed, &e.Failed, &e.Errors, &e.Skipped, &e.Unknown, &e.DurationSeconds, &e.OutputDir); err != nil {
			return nil, errors.Wrap(err, "scan history row")
		}
		if t, err := time.Parse(timeLayout, created); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate history")
}
