// Package storage persists the installed and archived sticker-set lists in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/prilive-com/stickerbox/internal/resilience"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// List names in sticker_set_lists.
const (
	listInstalled = "installed"
	listArchived  = "archived"
)

// Store is a SQLite-backed stickers.Persister.
type Store struct {
	db     *sql.DB
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRetryConfig sets how writes are retried while the database is busy.
// ShouldRetry is always replaced with the busy check.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// DefaultRetryConfig retries busy writes a few times with short waits.
func DefaultRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts: 5,
		BaseWait:    50 * time.Millisecond,
		MaxWait:     time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Open creates or opens the database at path and applies the schema.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - foreign key enforcement
//   - a 5-second busy timeout
//   - a single connection, SQLite allowing one writer at a time
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		retry:  DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.ShouldRetry = isBusy

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("stickerbox: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("stickerbox: connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("stickerbox: apply schema: %w", err)
	}

	s.db = db
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database for inspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		return fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// withRetry runs fn, retrying while the database is busy.
func (s *Store) withRetry(ctx context.Context, op string, fn func() error) error {
	_, err := resilience.RetryWithCallback(ctx, s.retry,
		func() (struct{}, error) {
			return struct{}{}, fn()
		},
		func(attempt int, err error, wait time.Duration) {
			s.logger.Warn("database busy, retrying",
				"op", op,
				"attempt", attempt,
				"wait", wait,
				"error", err)
		})
	return err
}
