// Package sqlite implements the backend contract on a local SQLite
// database. It gives the collection adapter, the bulk pipeline, and the
// CLI a real store with etags, continuation paging, and a bulk-execute
// primitive, without a remote service.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// MaxDocumentSize is the serialized-size ceiling for a single document,
// matching the in-memory reference store.
const MaxDocumentSize = 2 << 20

// DefaultPageSize is used when a query does not bound its pages.
const DefaultPageSize = 100

// DefaultBulkLimit caps operations applied per bulk-execute call. Calls
// submitting more report partial progress and the pipeline resubmits the
// remainder, mirroring server-side bulk primitives.
const DefaultBulkLimit = 500

// Backend stores documents in a single SQLite database file.
type Backend struct {
	db        *sql.DB
	bulkLimit int
}

// Option configures a Backend.
type Option func(*Backend)

// WithBulkLimit overrides the per-call bulk-execute cap.
func WithBulkLimit(n int) Option {
	return func(b *Backend) { b.bulkLimit = n }
}

// Open creates or opens the database file and ensures the schema exists.
func Open(dbPath string, opts ...Option) (*Backend, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	b := &Backend{db: db, bulkLimit: DefaultBulkLimit}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Close releases the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS databases (
		name TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS collections (
		database    TEXT NOT NULL,
		name        TEXT NOT NULL,
		partitioned INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (database, name)
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		database   TEXT NOT NULL,
		collection TEXT NOT NULL,
		partition  TEXT NOT NULL DEFAULT '',
		id         TEXT NOT NULL,
		etag       TEXT NOT NULL,
		value      TEXT NOT NULL,
		PRIMARY KEY (database, collection, partition, id)
	)`,
	`CREATE TABLE IF NOT EXISTS changes (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		database   TEXT NOT NULL,
		collection TEXT NOT NULL,
		type       TEXT NOT NULL,
		partition  TEXT NOT NULL DEFAULT '',
		id         TEXT NOT NULL,
		etag       TEXT NOT NULL,
		value      TEXT NOT NULL
	)`,
}
