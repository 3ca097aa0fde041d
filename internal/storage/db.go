// Package storage persists sessions and pending invoice events in SQLite,
// and sessions in Redis when several web instances share them.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is a migrated SQLite database.
type DB struct {
	db   *sql.DB
	path string
}

// Open creates (if needed), opens and migrates the database at dbPath.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{db: db, path: dbPath}, nil
}

// Path returns the database file location.
func (d *DB) Path() string { return d.path }

// Ping checks the database is reachable; used by readiness probes.
func (d *DB) Ping() error { return d.db.Ping() }

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
