// Where: internal/history/history.go
// What: SQLite-backed record of environment runs.
// Why: Keep outcomes queryable across invocations without a server.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver
	_ "github.com/ncruces/go-sqlite3/embed"  // Embed SQLite
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at  TEXT    NOT NULL,
    env         TEXT    NOT NULL,
    outcome     TEXT    NOT NULL,
    exit_code   INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    fingerprint TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Record is one environment run.
type Record struct {
	StartedAt   time.Time
	Env         string
	Outcome     string
	ExitCode    int
	Duration    time.Duration
	Fingerprint string
}

// Store reads and writes the run history database.
type Store struct {
	db *sql.DB
}

// Open initializes the database at path, creating the file and schema when
// missing.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records one completed run.
func (s *Store) Append(ctx context.Context, record Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, env, outcome, exit_code, duration_ms, fingerprint)
         VALUES (?, ?, ?, ?, ?, ?)`,
		record.StartedAt.UTC().Format(time.RFC3339),
		record.Env,
		record.Outcome,
		record.ExitCode,
		record.Duration.Milliseconds(),
		record.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT started_at, env, outcome, exit_code, duration_ms, fingerprint
         FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var startedAt string
		var durationMS int64
		if err := rows.Scan(&startedAt, &record.Env, &record.Outcome, &record.ExitCode, &durationMS, &record.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, startedAt); err == nil {
			record.StartedAt = ts
		}
		record.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
