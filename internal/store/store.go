// Package store is the client-resident record store.
//
// The store is an embedded SQLite database (ncruces/go-sqlite3, WAL mode)
// holding the five billing collections. It is the client's single source of
// truth while offline; the sync orchestrator exports it to the authoritative
// store and imports the authoritative export back into it.
//
// Layout:
//   - customers, products, invoices, expenses: one JSON document per row,
//     keyed by an AUTOINCREMENT surrogate id that is never reused
//   - invoice items are embedded in their invoice document
//   - secondary expression indexes over document fields (see Indexes)
//   - settings: setting_key -> setting_value
//   - meta: schema version; sequences: monotonic counters
//
// Schema setup is additive only. Open may be called on a store written by an
// older version of this package; a store written by a newer major version is
// refused.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"
	"golang.org/x/mod/semver"

	"github.com/retailbill/billsync/internal/schema"
)

// ErrNotFound is returned when a record with the requested id is not stored.
var ErrNotFound = errors.New("record not found")

// Indexes lists the document fields each collection is indexed and
// searchable by.
var Indexes = map[schema.Collection][]string{
	schema.Customers: {"name", "phone"},
	schema.Products:  {"name", "sku"},
	schema.Invoices:  {"customer_id", "date", "status", "invoice_number"},
	schema.Expenses:  {"date", "category"},
}

// documentCollections are the id-keyed collections, in apply order.
var documentCollections = []schema.Collection{
	schema.Customers, schema.Products, schema.Invoices, schema.Expenses,
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is an open local record store.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the store at path, creating the file and its schema when
// missing. Opening an existing store is safe and leaves its data untouched.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open(".billsync/local.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext opens the store with context support.
func OpenContext(ctx context.Context, path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &schema.StoreError{Op: "open", Err: fmt.Errorf("failed to create database directory: %w", err)}
	}

	// Pragmas travel in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &schema.StoreError{Op: "open", Err: fmt.Errorf("failed to open database: %w", err)}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, &schema.StoreError{Op: "open", Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}
	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the database.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logrus.WithError(err).Warn("failed to checkpoint WAL")
	}

	if err := db.conn.Close(); err != nil {
		return &schema.StoreError{Op: "close", Err: err}
	}

	db.conn = nil
	return nil
}

// InitSchema creates any missing collections and indexes. It is idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		return initSchema(ctx, tx.tx)
	})
}

func initSchema(ctx context.Context, q execer) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS meta (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sequences (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		setting_key TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL
	);
	`
	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return &schema.StoreError{Op: "init schema", Err: err}
	}

	var stored string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'schema_version'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return &schema.StoreError{Op: "init schema", Err: err}
	default:
		if err := schema.CheckVersion(stored); err != nil {
			return &schema.StoreError{Op: "init schema", Err: err}
		}
	}

	for _, c := range documentCollections {
		table := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc TEXT NOT NULL
		)`, c)
		if _, err := q.ExecContext(ctx, table); err != nil {
			return &schema.StoreError{Op: "init schema", Collection: c, Err: err}
		}
		for _, field := range Indexes[c] {
			idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(json_extract(doc, '$.%s'))`, c, field, c, field)
			if _, err := q.ExecContext(ctx, idx); err != nil {
				return &schema.StoreError{Op: "init schema", Collection: c, Err: err}
			}
		}
	}

	if stored == "" || semver.Compare(stored, schema.Version) < 0 {
		_, err := q.ExecContext(ctx, `
		INSERT INTO meta (name, value) VALUES ('schema_version', ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
		`, schema.Version)
		if err != nil {
			return &schema.StoreError{Op: "init schema", Err: err}
		}
	}
	return nil
}

// SchemaVersion returns the schema version recorded in the store.
func (db *DB) SchemaVersion(ctx context.Context) (string, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'schema_version'`).Scan(&v)
	if err != nil {
		return "", &schema.StoreError{Op: "schema version", Err: err}
	}
	return v, nil
}

// Tx is a local store transaction. It implements upsert.Target.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so everything fn wrote becomes
// visible together or not at all.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return &schema.StoreError{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &schema.StoreError{Op: "commit", Err: err}
	}
	return nil
}
