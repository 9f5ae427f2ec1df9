package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const settingsKey = "app_settings"

// Store persists the singleton settings record as a JSON value in the shared
// SQLite database. Missing records fall back to defaults so a fresh install
// works without a save.
type Store struct {
	db       *sql.DB
	defaults AppSettings
}

// NewStore wires the settings store onto an existing database handle.
func NewStore(db *sql.DB, defaults AppSettings) *Store {
	return &Store{db: db, defaults: defaults}
}

// Load returns the persisted settings, or the defaults when nothing has been
// saved yet. A corrupt stored record is an error, not a silent reset.
func (s *Store) Load(ctx context.Context) (AppSettings, error) {
	var raw string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT value FROM app_settings WHERE key = ?`,
		settingsKey,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults, nil
	}
	if err != nil {
		return AppSettings{}, fmt.Errorf("load settings: %w", err)
	}

	record := s.defaults
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return AppSettings{}, fmt.Errorf("decode settings: %w", err)
	}
	return record, nil
}

// Save validates and persists the full record, replacing any prior value.
// Masked credentials in the request keep their stored values.
func (s *Store) Save(ctx context.Context, record AppSettings) (AppSettings, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return AppSettings{}, err
	}
	record = PreserveMasked(record, current)

	if err := record.Validate(); err != nil {
		return AppSettings{}, fmt.Errorf("invalid settings: %w", err)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return AppSettings{}, fmt.Errorf("encode settings: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		settingsKey,
		string(raw),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return AppSettings{}, fmt.Errorf("save settings: %w", err)
	}
	return record, nil
}
