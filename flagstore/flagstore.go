// Package flagstore persists the small amount of engine state that must
// survive restarts: the engineActive flag and the last reported counters.
//
// The store is a plain SQLite table so external processes can flip the flag
// with one UPDATE; lingo picks the change up through watch.Watcher polling
// PRAGMA data_version.
package flagstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the flagstore tables. Pass to dbopen.WithSchema or call
// Init.
const Schema = `
CREATE TABLE IF NOT EXISTS engine_flags (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS engine_stats (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

const flagActive = "engine_active"

// Store reads and writes engine flags.
type Store struct {
	db *sql.DB
}

// New creates a Store over db. The caller owns the connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the tables if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("flagstore: init: %w", err)
	}
	return nil
}

// GetFlag returns the engineActive flag. A missing row means the engine has
// never been toggled and defaults to active.
func (s *Store) GetFlag(ctx context.Context) (bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM engine_flags WHERE name = ?", flagActive).Scan(&v)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("flagstore: get flag: %w", err)
	}
	return v != 0, nil
}

// SetFlag persists the engineActive flag.
func (s *Store) SetFlag(ctx context.Context, active bool) error {
	v := 0
	if active {
		v = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_flags (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		flagActive, v)
	if err != nil {
		return fmt.Errorf("flagstore: set flag: %w", err)
	}
	return nil
}

// SaveStats persists the translated/cached counters.
func (s *Store) SaveStats(ctx context.Context, translated, cached int64) error {
	for name, v := range map[string]int64{
		"translated_count": translated,
		"cached_count":     cached,
	} {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO engine_stats (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
			name, v); err != nil {
			return fmt.Errorf("flagstore: save stats: %w", err)
		}
	}
	return nil
}

// LoadStats returns the persisted counters; missing rows read as zero.
func (s *Store) LoadStats(ctx context.Context) (translated, cached int64, err error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, value FROM engine_stats")
	if err != nil {
		return 0, 0, fmt.Errorf("flagstore: load stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var v int64
		if err := rows.Scan(&name, &v); err != nil {
			return 0, 0, fmt.Errorf("flagstore: scan stats: %w", err)
		}
		switch name {
		case "translated_count":
			translated = v
		case "cached_count":
			cached = v
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("flagstore: load stats: %w", err)
	}
	return translated, cached, nil
}
