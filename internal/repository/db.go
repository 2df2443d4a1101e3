// Package repository is the on-device result cache: one sqlite table keyed
// by the sha256 of the file content.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS document_results (
	content_hash  TEXT PRIMARY KEY,
	file_name     TEXT NOT NULL,
	status        TEXT NOT NULL,
	result_json   TEXT,
	error_code    TEXT,
	error_message TEXT,
	updated_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_results_status ON document_results(status);
`

// Open opens (creating if needed) the sqlite cache at cfg.Path and applies
// the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + cfg.Path + "?" + q.Encode()

	logger.Info("cache.open", "path", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("cache.open.failed", "path", cfg.Path, "err", err)
		return nil, err
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY between workers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		logger.Error("cache.migrate.failed", "path", cfg.Path, "err", err)
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("cache.open.ok", "path", cfg.Path)
	return db, nil
}

// Close closes the database gracefully
func Close(db *sql.DB, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("cache.close.failed", "err", err)
		return
	}
	logger.Info("cache.closed")
}

// HealthCheck pings the database.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return db.PingContext(ctx)
}
