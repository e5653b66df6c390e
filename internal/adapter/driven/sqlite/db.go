// Package sqlite persists flattened tables and the export ledger in a local
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// pragmas applied to every connection of an export database.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// DB is an export database. fetch --db writes tables and ledger rows through
// Writer; the exports command reads the ledger through Reader, which may run
// while another process holds the write lock.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// Open opens the export database at path and brings its ledger schema up to
// date.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := NewDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

// NewDB opens both pools on path without touching the schema.
func NewDB(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?%s", path, pragmas)

	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer %s: %w", path, err)
	}

	reader, err := openPool(ctx, dsn, 1)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader %s: %w", path, err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

func openPool(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Close closes both pools and returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}
