package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements KeyValueStore using SQLite.
// It uses the pure Go modernc.org/sqlite driver, so a client binary does
// not need cgo to keep its sessions on disk.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite key/value store.
// The database file is created if it doesn't exist.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Enable WAL mode so a second client process can read while we write
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS client_state (
		state_key   TEXT PRIMARY KEY,
		state_value TEXT NOT NULL,
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT state_value FROM client_state WHERE state_key = ?",
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: failed to read key: %w", err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO client_state (state_key, state_value, updated_at) VALUES (?, ?, datetime('now'))",
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to write key: %w", err)
	}
	return nil
}

// Remove deletes key. Missing keys are ignored.
func (s *SQLiteStore) Remove(key string) error {
	_, err := s.db.Exec("DELETE FROM client_state WHERE state_key = ?", key)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete key: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
