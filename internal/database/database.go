// Package database is the durable store behind the snapshot log, the work
// queue and run reports. Every mutation runs under a cross-process
// advisory lock next to the database file.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned for an unknown queue item.
	ErrNotFound = errors.New("not found")
	// ErrLockTimeout is returned when the store lock cannot be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for store lock")
)

// DefaultLockTimeout bounds the wait for the store lock.
const DefaultLockTimeout = 30 * time.Second

// DB wraps a SQLite database connection.
type DB struct {
	conn        *sql.DB
	path        string
	lock        *flock.Flock
	lockTimeout time.Duration
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{
		conn:        conn,
		path:        dbPath,
		lock:        flock.New(dbPath + ".lock"),
		lockTimeout: DefaultLockTimeout,
	}, nil
}

// SetLockTimeout changes how long mutations wait for the store lock.
func (db *DB) SetLockTimeout(d time.Duration) {
	if d > 0 {
		db.lockTimeout = d
	}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
