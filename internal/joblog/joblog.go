package joblog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level grades an entry. "success" exists alongside the usual severities so
// the dashboard can render completed work distinctly.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

var levelSet = map[Level]struct{}{
	LevelInfo:    {},
	LevelWarning: {},
	LevelError:   {},
	LevelSuccess: {},
}

// ParseLevel normalizes user input into a known level.
func ParseLevel(value string) (Level, bool) {
	level := Level(strings.ToLower(strings.TrimSpace(value)))
	_, ok := levelSet[level]
	return level, ok
}

// Entry is an append-only event record. Entries are never mutated after
// creation.
type Entry struct {
	ID        string
	Timestamp time.Time
	Level     Level
	Message   string
	Details   string
	JobID     string
}

// Filter narrows List output. Search matches message and details
// case-insensitively; Level, when set, must match exactly.
type Filter struct {
	Search string
	Level  Level
}

// Store appends and queries dashboard log entries in the shared database.
type Store struct {
	db *sql.DB
}

// NewStore wires the log store onto an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append records one entry. JobID may be empty for system-wide events.
func (s *Store) Append(ctx context.Context, level Level, message, details, jobID string) (*Entry, error) {
	if _, ok := levelSet[level]; !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	if message == "" {
		return nil, errors.New("log message must not be empty")
	}

	entry := &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Details:   details,
		JobID:     jobID,
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO job_logs (id, ts, level, message, details, job_id) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.Level,
		entry.Message,
		nullableString(entry.Details),
		nullableString(entry.JobID),
	)
	if err != nil {
		return nil, fmt.Errorf("append log entry: %w", err)
	}
	return entry, nil
}

// List returns entries newest first, narrowed by the filter.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	query := `SELECT id, ts, level, message, details, job_id FROM job_logs`
	var (
		clauses []string
		args    []any
	)
	if filter.Level != "" {
		clauses = append(clauses, `level = ?`)
		args = append(args, filter.Level)
	}
	if filter.Search != "" {
		clauses = append(clauses, `(LOWER(message) LIKE ? OR LOWER(details) LIKE ?)`)
		needle := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, needle, needle)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY ts DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry   Entry
			details sql.NullString
			jobID   sql.NullString
			tsRaw   string
		)
		if err := rows.Scan(&entry.ID, &tsRaw, &entry.Level, &entry.Message, &details, &jobID); err != nil {
			return nil, err
		}
		entry.Details = details.String
		entry.JobID = jobID.String
		if ts, err := time.Parse(time.RFC3339Nano, tsRaw); err == nil {
			entry.Timestamp = ts
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// ListByJob returns one job's entries in emission order.
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, ts, level, message, details, job_id FROM job_logs WHERE job_id = ? ORDER BY ts, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list job log entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry   Entry
			details sql.NullString
			ref     sql.NullString
			tsRaw   string
		)
		if err := rows.Scan(&entry.ID, &tsRaw, &entry.Level, &entry.Message, &details, &ref); err != nil {
			return nil, err
		}
		entry.Details = details.String
		entry.JobID = ref.String
		if ts, err := time.Parse(time.RFC3339Nano, tsRaw); err == nil {
			entry.Timestamp = ts
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM job_logs WHERE ts < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune log entries: %w", err)
	}
	return result.RowsAffected()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
