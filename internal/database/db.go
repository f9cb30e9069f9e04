package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection and provides initialization
type DB struct {
	*sql.DB
}

// NewDB creates and initializes a new database connection
func NewDB(dbPath string) (*DB, error) {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Concurrent resolvers write while the proxy manager refreshes, so wait on
	// locks instead of failing with SQLITE_BUSY.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)

	db := &DB{DB: sqlDB}

	if err := db.initSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the database tables and indexes
func (db *DB) initSchema() error {
	schema := `
-- Proxy pool persistence
CREATE TABLE IF NOT EXISTS proxies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    proxy_type TEXT NOT NULL,
    country TEXT,

    -- Health tracking
    status TEXT NOT NULL DEFAULT 'unknown', -- healthy, unhealthy, timeout, error, unknown
    response_time_ms INTEGER,
    fail_count INTEGER DEFAULT 0,

    first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_checked_at DATETIME,
    last_healthy_at DATETIME,

    UNIQUE(host, port)
);

CREATE INDEX IF NOT EXISTS idx_proxies_last_checked ON proxies(last_checked_at);
CREATE INDEX IF NOT EXISTS idx_proxies_status ON proxies(status);

-- Resolved streams, one row per event slug
CREATE TABLE IF NOT EXISTS streams (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL UNIQUE,
    source TEXT NOT NULL,
    title TEXT NOT NULL,
    group_title TEXT,
    logo TEXT,
    url TEXT NOT NULL,
    referer TEXT,
    origin TEXT,
    user_agent TEXT,
    start_at DATETIME,

    status TEXT NOT NULL DEFAULT 'unknown',
    kind TEXT,
    variants INTEGER,
    response_time_ms INTEGER,

    first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_checked_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_streams_source ON streams(source);
CREATE INDEX IF NOT EXISTS idx_streams_last_checked ON streams(last_checked_at);

-- Embed page -> stream resolutions
CREATE TABLE IF NOT EXISTS resolve_cache (
    key TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    referer TEXT,
    origin TEXT,
    user_agent TEXT,
    expires_at DATETIME NOT NULL
);

-- Scrape runs
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    status TEXT NOT NULL DEFAULT 'running',
    events INTEGER NOT NULL DEFAULT 0,
    streams INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`

	_, err := db.Exec(schema)
	return err
}
