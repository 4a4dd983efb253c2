package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements KeyValueStore using MySQL.
// Rows are namespaced by owner so several client installations can share
// one database without seeing each other's sessions.
type MySQLStore struct {
	db    *sql.DB
	owner string
}

// NewMySQL creates a new MySQL key/value store on an open database handle.
// owner scopes every key; an empty owner is allowed.
func NewMySQL(db *sql.DB, owner string) (*MySQLStore, error) {
	if err := createMySQLSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{db: db, owner: owner}, nil
}

// NewMySQLFromDSN creates a new MySQL key/value store from a DSN.
// The DSN format is: user:password@tcp(host:port)/database
func NewMySQLFromDSN(dsn, owner string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	return NewMySQL(db, owner)
}

func createMySQLSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS client_state (
		owner       VARCHAR(255) NOT NULL,
		state_key   VARCHAR(255) NOT NULL,
		state_value MEDIUMTEXT NOT NULL,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,

		PRIMARY KEY (owner, state_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("mysql: failed to create schema: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *MySQLStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT state_value FROM client_state WHERE owner = ? AND state_key = ?",
		s.owner,
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mysql: failed to read key: %w", err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *MySQLStore) Set(key, value string) error {
	query := `
	INSERT INTO client_state (owner, state_key, state_value)
	VALUES (?, ?, ?)
	ON DUPLICATE KEY UPDATE
		state_value = VALUES(state_value)
	`

	if _, err := s.db.Exec(query, s.owner, key, value); err != nil {
		return fmt.Errorf("mysql: failed to write key: %w", err)
	}
	return nil
}

// Remove deletes key.
func (s *MySQLStore) Remove(key string) error {
	_, err := s.db.Exec(
		"DELETE FROM client_state WHERE owner = ? AND state_key = ?",
		s.owner,
		key,
	)
	if err != nil {
		return fmt.Errorf("mysql: failed to delete key: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
