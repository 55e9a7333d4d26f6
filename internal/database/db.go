// Package database wraps a local SQLite file used for crash-recoverable
// window-state snapshots and bloom-filter spill, using a profile-tuned
// PRAGMA connection setup.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DatabaseProfile selects a PRAGMA tuning preset for the connection.
type DatabaseProfile string

const (
	// ProfileSnapshot favors durability: used for window-state snapshots
	// that must survive a crash without corruption.
	ProfileSnapshot DatabaseProfile = "snapshot"

	// ProfileCache favors throughput over durability: used for the bloom
	// filter's periodic spill, which is rebuildable from the KV/registry
	// layer on loss.
	ProfileCache DatabaseProfile = "cache"
)

// Config configures a single database connection.
type Config struct {
	Path    string
	Profile DatabaseProfile
	Name    string
}

// DB wraps a *sql.DB tagged with its profile and logical name.
type DB struct {
	conn    *sql.DB
	path    string
	profile DatabaseProfile
	name    string
}

// Conn exposes the underlying *sql.DB for callers that need raw SQL access.
func (d *DB) Conn() *sql.DB { return d.conn }

// Name returns the database's logical name (for logging/health reporting).
func (d *DB) Name() string { return d.name }

// Close closes the underlying connection pool.
func (d *DB) Close() error { return d.conn.Close() }

// New opens (creating directories as needed) a SQLite database tuned per
// cfg.Profile.
func New(cfg Config) (*DB, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("database %s: resolve path: %w", cfg.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("database %s: create dir: %w", cfg.Name, err)
	}

	connStr := buildConnectionString(absPath, cfg.Profile)
	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("database %s: open: %w", cfg.Name, err)
	}

	configureConnectionPool(conn, cfg.Profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database %s: ping: %w", cfg.Name, err)
	}

	return &DB{conn: conn, path: absPath, profile: cfg.Profile, name: cfg.Name}, nil
}

func buildConnectionString(path string, profile DatabaseProfile) string {
	pragmas := "foreign_keys(1)&_pragma=wal_autocheckpoint(1000)&_pragma=cache_size(-64000)"

	switch profile {
	case ProfileCache:
		pragmas += "&_pragma=synchronous(OFF)&_pragma=temp_store(MEMORY)&_pragma=journal_mode(WAL)"
	default: // ProfileSnapshot
		pragmas += "&_pragma=synchronous(FULL)&_pragma=journal_mode(WAL)"
	}

	return fmt.Sprintf("file:%s?_pragma=%s", path, pragmas)
}

func configureConnectionPool(conn *sql.DB, profile DatabaseProfile) {
	switch profile {
	case ProfileCache:
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
	default:
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
	}
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(10 * time.Minute)
}

// Migrate applies the minimal schema needed for window snapshots and bloom
// spill. Non-goal: no general migration framework.
func (d *DB) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS window_snapshots (
	ticker TEXT NOT NULL,
	window_end INTEGER NOT NULL,
	payload BLOB NOT NULL,
	written_at INTEGER NOT NULL,
	PRIMARY KEY (ticker, window_end)
);
CREATE TABLE IF NOT EXISTS bloom_spill (
	name TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	written_at INTEGER NOT NULL
);
`
	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("database %s: migrate: %w", d.name, err)
	}
	return nil
}
