package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func init() {
	Register(KindSQLite, func(path string) (KV, error) { return OpenSQLite(path) })
}

// SQLiteKV stores blobs in a single SQLite table. WAL mode allows readers
// to proceed while a write is in flight.
type SQLiteKV struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) a blob store at the given database
// file path. The caller must Close when done.
func OpenSQLite(path string) (*SQLiteKV, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	kv := &SQLiteKV{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := kv.conn.Exec(pragma); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		key TEXT PRIMARY KEY,
		blob BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := kv.conn.Exec(schema); err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return kv, nil
}

// Get returns the blob stored under key, or found=false if absent.
func (kv *SQLiteKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := kv.conn.QueryRowContext(ctx, "SELECT blob FROM blobs WHERE key = ?", key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return blob, true, nil
}

// Set overwrites the blob stored under key.
func (kv *SQLiteKV) Set(ctx context.Context, key string, blob []byte) error {
	query := `
	INSERT INTO blobs (key, blob, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		blob = excluded.blob,
		updated_at = excluded.updated_at
	`
	_, err := kv.conn.ExecContext(ctx, query, key, blob, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	return nil
}

// Remove deletes the given keys. Absent keys are ignored.
func (kv *SQLiteKV) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	query := "DELETE FROM blobs WHERE key IN (" + placeholders + ")"
	if _, err := kv.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove blobs: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the connection.
func (kv *SQLiteKV) Close() error {
	if kv.conn == nil {
		return nil
	}

	if _, err := kv.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := kv.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	kv.conn = nil
	return nil
}
