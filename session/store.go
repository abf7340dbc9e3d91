// Package session provides the bearer token attached to every outbound
// request and connection, read from a small local key/value store.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// TokenKey is the storage key the bearer token is kept under.
const TokenKey = "auth_token"

const schema = `
CREATE TABLE IF NOT EXISTS local_storage (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// ErrNotAuthenticated is returned when no usable token is stored.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// SQLiteStore persists key/value entries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the storage table exists. ":memory:" is accepted for tests. The caller is
// responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get returns the value stored under key. ok is false when the key is absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_storage (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Token implements TokenSource.
func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	tok, ok, err := s.Get(ctx, TokenKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotAuthenticated
	}
	return usable(tok)
}

// SaveToken stores the bearer token.
func (s *SQLiteStore) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	return s.Set(ctx, TokenKey, token)
}

// ClearToken removes the stored bearer token.
func (s *SQLiteStore) ClearToken(ctx context.Context) error {
	return s.Delete(ctx, TokenKey)
}
