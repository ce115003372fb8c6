package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/me/libra/internal/logging"
)

// SQLiteStore implements Store and Batcher using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
	logger    *slog.Logger
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithNamespace scopes every key to ns (typically the backend base URL).
func WithNamespace(ns string) SQLiteOption {
	return func(s *SQLiteStore) {
		s.namespace = ns
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logging.Or(logger).With("component", "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.logger.Debug("sql", "op", "select", "table", "kv", "key", key)

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, s.namespace, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, key)
}

// SetMany writes all values in one transaction.
func (s *SQLiteStore) SetMany(ctx context.Context, values map[string]string) error {
	s.logger.Debug("sql", "op", "upsert", "table", "kv", "keys", len(values))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, value := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			s.namespace, key, value, now,
		); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// RemoveMany deletes all keys in one transaction.
func (s *SQLiteStore) RemoveMany(ctx context.Context, keys ...string) error {
	s.logger.Debug("sql", "op", "delete", "table", "kv", "keys", len(keys))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM kv WHERE namespace = ? AND key = ?`, s.namespace, key,
		); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Keys lists the keys stored in this namespace, for diagnostics.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv WHERE namespace = ? ORDER BY key`, s.namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
