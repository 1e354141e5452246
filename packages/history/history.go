// Package history keeps a local SQLite log of request outcomes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/perchrh/ackhttp/packages/http"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultConnection is used when history is enabled without a location.
const DefaultConnection = "sqlite:.ackhttp-history.db"

const schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	status      INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS outcomes_created_at ON outcomes (created_at);
`

// Entry is one recorded outcome.
type Entry struct {
	ID         int64         `json:"id"`
	RequestID  string        `json:"requestId"`
	Method     string        `json:"method"`
	URL        string        `json:"url"`
	StatusCode int           `json:"statusCode,omitempty"`
	Success    bool          `json:"success"`
	Kind       string        `json:"kind"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"` // nanoseconds
	CreatedAt  time.Time     `json:"createdAt"`
}

// Store represents an open history database
type Store struct {
	db *sql.DB
}

// Open connects to the database named by connectionString and creates the
// schema if needed.
func Open(ctx context.Context, connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends one outcome.
func (s *Store) Record(ctx context.Context, o *http.Outcome) error {
	var errText string
	if err := o.Failure(); err != nil {
		errText = err.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (request_id, method, url, status, success, kind, error, duration_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RequestID, string(o.Method), o.URL, o.StatusCode, o.Success, o.Kind().String(), errText,
		o.Duration.Microseconds(), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, method, url, status, success, kind, error, duration_us, created_at
		 FROM outcomes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e          Entry
			durationUs int64
			createdMs  int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Method, &e.URL, &e.StatusCode, &e.Success,
			&e.Kind, &e.Error, &durationUs, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Duration = time.Duration(durationUs) * time.Microsecond
		e.CreatedAt = time.UnixMilli(createdMs)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// parseConnectionString extracts the SQLite path.
// Supported formats:
// - sqlite://path/to/db.sqlite
// - sqlite:./history.db
// - a bare file path
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)

	switch {
	case connStr == "":
		return "", fmt.Errorf("empty history connection string")
	case strings.HasPrefix(connStr, "sqlite://"):
		return strings.TrimPrefix(connStr, "sqlite://"), nil
	case strings.HasPrefix(connStr, "sqlite:"):
		return strings.TrimPrefix(connStr, "sqlite:"), nil
	case strings.Contains(connStr, "://"):
		return "", fmt.Errorf("unsupported history database: %s", connStr)
	default:
		return connStr, nil
	}
}
