// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/logging"
)

// DB wraps the DuckDB connection pool.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// now is swappable in tests.
	now func() time.Time
}

// New opens (or creates) the database at cfg.Path and applies the schema.
// ":memory:" gives a private in-memory database.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
	db.configureConnectionPool()

	if err := db.createSchema(context.Background()); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("database ready")
	return db, nil
}

func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn exposes the pool for packages that own their own tables.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close checkpoints and closes the database.
func (db *DB) Close() error {
	if _, err := db.conn.Exec("CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("checkpoint before close failed")
	}
	return db.conn.Close()
}

// closeQuietly is for error paths where a Close failure is not actionable.
func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
