// Package db provides the bot's sqlite-backed persistence: applications
// and their DM sessions, role approvals and mappings, repo and channel
// hooks with poll cursors, per-user feature toggles, guild configuration,
// and command usage counters. Schema is managed by embedded migrations.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Sentinel errors callers branch on.
var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrSessionActive is returned when a user already has an open
	// application session.
	ErrSessionActive = errors.New("application session already active")
)

// DB wraps the sql database handle with the bot's store methods.
type DB struct {
	*sql.DB
}

// OpenDB opens the sqlite database at path without touching the schema.
// The parent directory is created if needed. Use NewDB to also run
// migrations.
func OpenDB(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialise writers; sqlite holds a single write lock and the bot has
	// several goroutines writing.
	sqldb.SetMaxOpenConns(1)

	if _, err := sqldb.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return &DB{sqldb}, nil
}

// NewDB opens the database and applies all pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
