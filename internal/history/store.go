// Package history keeps a local record of terminal launch outcomes so an
// operator can see what the tool has launched (or failed to launch) without
// digging through provider dashboards.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Record is one terminal launch outcome. Either InstanceIDs is non-empty or
// ErrorCode/ErrorMessage describe the failure.
type Record struct {
	ID           int64
	LaunchedAt   time.Time
	InstanceType string
	Region       string
	Quantity     int
	InstanceIDs  []string
	ErrorCode    string
	ErrorMessage string
}

// Store is a SQLite-backed launch log.
type Store struct{ db *sql.DB }

// Open creates (or opens) the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// Record appends a launch outcome.
func (s *Store) Record(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO launches (launched_at, instance_type, region, quantity, instance_ids, error_code, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.LaunchedAt.UTC().Format(time.RFC3339), r.InstanceType, r.Region, r.Quantity,
		strings.Join(r.InstanceIDs, ","), r.ErrorCode, r.ErrorMessage)
	if err != nil {
		return fmt.Errorf("record launch: %w", err)
	}
	return nil
}

// Recent returns the newest records, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, launched_at, instance_type, region, quantity, instance_ids, error_code, error_message
		 FROM launches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts, ids string
		if err := rows.Scan(&r.ID, &ts, &r.InstanceType, &r.Region, &r.Quantity, &ids, &r.ErrorCode, &r.ErrorMessage); err != nil {
			return nil, err
		}
		r.LaunchedAt, _ = time.Parse(time.RFC3339, ts)
		if ids != "" {
			r.InstanceIDs = strings.Split(ids, ",")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }
