// Package sqlite stores grade-hub documents in a single SQLite file through
// the pure-Go modernc driver. History fields are kept as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // driver: sqlite
)

// DefaultDSN builds a read-write DSN for path with a busy timeout, so a
// second process waits instead of failing on a locked database.
func DefaultDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
}

// Open opens the database and ensures the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DefaultDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// one writer at a time; readers share the same connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS student_ids (
  external_id TEXT PRIMARY KEY,
  internal_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  surname TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS grade_records (
  internal_id TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  surname TEXT NOT NULL DEFAULT '',
  written_grades TEXT NOT NULL DEFAULT '[]',
  project_grades TEXT NOT NULL DEFAULT '[]',
  rejected TEXT NOT NULL DEFAULT '{}',
  updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS session_markers (
  stream TEXT PRIMARY KEY CHECK (stream IN ('written', 'project')),
  session_key TEXT NOT NULL
);
`

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
