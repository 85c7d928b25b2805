// Package db manages the SQLite file backing the bag cache.
//
// A Store holds two pools against the same file: a single-connection
// read-write pool used by ingestion, and a read-only pool opened with
// mode=ro and query_only so that a write issued from query code is rejected
// by SQLite itself.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
)

const busyTimeoutMillis = 5000

// Store owns the read-write and read-only connection pools for one database file.
type Store struct {
	path string
	rw   *sql.DB // single writer
	ro   *sql.DB // concurrent readers, enforced read-only
}

// Open opens (creating if necessary) the database at path.
//
// The rollback journal is kept on purpose: commits touch the main file, so its
// modification time tracks every write.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, bberrors.NewStorageError(bberrors.CodeBackendUnavailable,
			fmt.Sprintf("resolve database path %q", path), err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, bberrors.NewStorageError(bberrors.CodeBackendUnavailable,
			"create database directory", err)
	}

	rw, err := sql.Open("sqlite3", dsn(abs, url.Values{
		"_busy_timeout": {fmt.Sprint(busyTimeoutMillis)},
		"_txlock":       {"immediate"},
	}))
	if err != nil {
		return nil, bberrors.NewStorageError(bberrors.CodeBackendUnavailable, "open database", err)
	}
	rw.SetMaxOpenConns(1)
	rw.SetMaxIdleConns(1)

	// Ping creates the file so the read-only pool has something to open.
	if err := rw.Ping(); err != nil {
		rw.Close()
		return nil, ClassifyError(fmt.Errorf("db: ping %s: %w", abs, err))
	}

	ro, err := sql.Open("sqlite3", dsn(abs, url.Values{
		"mode":          {"ro"},
		"_query_only":   {"true"},
		"_busy_timeout": {fmt.Sprint(busyTimeoutMillis)},
	}))
	if err != nil {
		rw.Close()
		return nil, bberrors.NewStorageError(bberrors.CodeBackendUnavailable, "open read-only database", err)
	}
	ro.SetMaxOpenConns(4)
	ro.SetMaxIdleConns(4)
	ro.SetConnMaxLifetime(5 * time.Minute)

	return &Store{path: abs, rw: rw, ro: ro}, nil
}

func dsn(abs string, params url.Values) string {
	return "file:" + abs + "?" + params.Encode()
}

// Path returns the absolute path of the database file.
func (s *Store) Path() string {
	return s.path
}

// ModTime returns the last-modified time of the database file.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, bberrors.NewStorageError(bberrors.CodeBackendUnavailable,
			"stat database file", err)
	}
	return info.ModTime(), nil
}

// WithCursor runs fn inside a read-write transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Store) WithCursor(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.rw.BeginTx(ctx, nil)
	if err != nil {
		return ClassifyError(fmt.Errorf("db: begin: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return ClassifyError(err)
	}
	if err := tx.Commit(); err != nil {
		return ClassifyError(fmt.Errorf("db: commit: %w", err))
	}
	return nil
}

// WithConn hands fn the single read-write connection for the duration of the
// call. Transaction control is left to fn; the connection is returned to the
// pool on every exit path.
func (s *Store) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.rw.Conn(ctx)
	if err != nil {
		return ClassifyError(fmt.Errorf("db: acquire connection: %w", err))
	}
	defer conn.Close()

	return ClassifyError(fn(conn))
}

// WithReadOnlyCursor runs fn inside a transaction on the read-only pool.
// All reads made by fn observe one snapshot. Any write fails with a
// READ_ONLY_VIOLATION error.
func (s *Store) WithReadOnlyCursor(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.ro.BeginTx(ctx, nil)
	if err != nil {
		return ClassifyError(fmt.Errorf("db: begin read-only: %w", err))
	}
	// Nothing to commit.
	defer tx.Rollback()

	return ClassifyError(fn(tx))
}

// Close closes both pools.
func (s *Store) Close() error {
	roErr := s.ro.Close()
	rwErr := s.rw.Close()
	if rwErr != nil {
		return fmt.Errorf("db: close: %w", rwErr)
	}
	if roErr != nil {
		return fmt.Errorf("db: close read-only: %w", roErr)
	}
	return nil
}
