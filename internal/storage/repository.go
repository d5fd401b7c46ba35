// Package storage persists small client-side values (the remembered access
// token and its marker) in a local SQLite file so they survive a restart.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pft/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a string key/value table.
type SQLiteStore struct {
	db      *sql.DB
	logger  *log.Logger
	timeout time.Duration
}

// Open creates the database directory if needed, opens the file and upgrades
// its kv schema.
func Open(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = log.OrNop(logger).WithComponent(log.ComponentStorage)
	version, err := MigrateState(dbPath, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("State file ready", "path", dbPath, "schema_version", version)

	return &SQLiteStore{
		db:      db,
		logger:  logger,
		timeout: 5 * time.Second,
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns the value stored under key. found is false when the key is absent.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or overwrites key.
func (s *SQLiteStore) Set(key, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	s.logger.Debug("Stored value", log.FieldKey, key)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
