package remote

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Dialect selects the SQL flavor and driver of the authoritative store.
type Dialect string

const (
	// SQLite is a local SQLite file served by ncruces/go-sqlite3.
	SQLite Dialect = "sqlite"
	// LibSQL is an embedded or remote libSQL (Turso) database. Its driver
	// needs cgo and is registered by the billsync binary, not this package.
	LibSQL Dialect = "libsql"
	// MySQL is a MySQL or MariaDB server.
	MySQL Dialect = "mysql"
)

// ParseDialect validates a dialect name from configuration.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case SQLite, LibSQL, MySQL:
		return d, nil
	case "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown dialect %q (want sqlite, libsql or mysql)", s)
}

func (d Dialect) driverName() string {
	switch d {
	case SQLite:
		return "sqlite3"
	case LibSQL:
		return "libsql"
	}
	return "mysql"
}

// dataSource turns a configured DSN into the driver's connection string.
func (d Dialect) dataSource(dsn string) (string, error) {
	switch d {
	case SQLite:
		if strings.HasPrefix(dsn, "file:") {
			return dsn, nil
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return "file:" + dsn + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(1)", nil

	case LibSQL:
		if strings.Contains(dsn, "://") || strings.HasPrefix(dsn, "file:") {
			return dsn, nil
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return "file:" + dsn, nil

	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		if _, ok := cfg.Params["charset"]; !ok {
			cfg.Params["charset"] = "utf8mb4"
		}
		return cfg.FormatDSN(), nil
	}
	return "", fmt.Errorf("unknown dialect %q", d)
}

// table describes a mirrored entity table; id is implicit.
type table struct {
	name string
	cols []string
}

var (
	customersTable = table{"customers", []string{"name", "phone", "email", "address", "created_at"}}
	productsTable  = table{"products", []string{"name", "sku", "price", "stock", "category", "tax", "created_at"}}
	invoicesTable  = table{"invoices", []string{
		"invoice_number", "customer_id", "date", "due_date", "subtotal", "tax", "total",
		"status", "amount_paid", "notes", "created_at",
	}}
	expensesTable = table{"expenses", []string{"date", "category", "description", "amount", "created_at"}}
)

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (t table) insertSQL() string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(t.cols, ", "), placeholders(len(t.cols)))
}

func (t table) selectSQL() string {
	return fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id", strings.Join(t.cols, ", "), t.name)
}

// upsertSQL inserts a row at an explicit id, overwriting every column of an
// existing row with that id.
func (d Dialect) upsertSQL(t table) string {
	cols := append([]string{"id"}, t.cols...)
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), placeholders(len(cols)))

	sets := make([]string, len(t.cols))
	for i, c := range t.cols {
		if d == MySQL {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		} else {
			sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
		}
	}
	if d == MySQL {
		return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return insert + " ON CONFLICT(id) DO UPDATE SET " + strings.Join(sets, ", ")
}

func (d Dialect) settingSQL() string {
	if d == MySQL {
		return `INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE setting_value = VALUES(setting_value)`
	}
	return `INSERT INTO settings (setting_key, setting_value) VALUES (?, ?)
	ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value`
}

// schemaStatements returns the idempotent DDL for d, one statement each.
func (d Dialect) schemaStatements() []string {
	if d == MySQL {
		return mysqlSchema
	}
	return sqliteSchema
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		sku TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,  -- decimal string
		stock INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		tax TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_number INTEGER NOT NULL,
		customer_id INTEGER NOT NULL REFERENCES customers(id),
		date TEXT NOT NULL,
		due_date TEXT,
		subtotal TEXT NOT NULL,
		tax TEXT NOT NULL,
		total TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unpaid',
		amount_paid TEXT NOT NULL DEFAULT '0',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		tax TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices(date)`,
	`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items(invoice_id)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phone VARCHAR(50) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		address VARCHAR(1000) NOT NULL DEFAULT '',
		created_at VARCHAR(40) NOT NULL DEFAULT ''
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		sku VARCHAR(100) NOT NULL DEFAULT '',
		price DECIMAL(15,4) NOT NULL,
		stock BIGINT NOT NULL DEFAULT 0,
		category VARCHAR(100) NOT NULL DEFAULT '',
		tax DECIMAL(7,4) NOT NULL DEFAULT 0,
		created_at VARCHAR(40) NOT NULL DEFAULT ''
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		invoice_number BIGINT NOT NULL,
		customer_id BIGINT NOT NULL,
		date VARCHAR(10) NOT NULL,
		due_date VARCHAR(10) NULL,
		subtotal DECIMAL(15,4) NOT NULL,
		tax DECIMAL(15,4) NOT NULL,
		total DECIMAL(15,4) NOT NULL,
		status VARCHAR(10) NOT NULL DEFAULT 'unpaid',
		amount_paid DECIMAL(15,4) NOT NULL DEFAULT 0,
		notes VARCHAR(2000) NOT NULL DEFAULT '',
		created_at VARCHAR(40) NOT NULL DEFAULT '',
		INDEX idx_invoices_customer (customer_id),
		INDEX idx_invoices_date (date),
		FOREIGN KEY (customer_id) REFERENCES customers(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS invoice_items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		invoice_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity DECIMAL(15,4) NOT NULL,
		price DECIMAL(15,4) NOT NULL,
		tax DECIMAL(7,4) NOT NULL DEFAULT 0,
		total DECIMAL(15,4) NOT NULL,
		INDEX idx_invoice_items_invoice (invoice_id),
		FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		date VARCHAR(10) NOT NULL,
		category VARCHAR(100) NOT NULL,
		description VARCHAR(1000) NOT NULL DEFAULT '',
		amount DECIMAL(15,4) NOT NULL,
		created_at VARCHAR(40) NOT NULL DEFAULT '',
		INDEX idx_expenses_date (date)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS settings (
		setting_key VARCHAR(100) PRIMARY KEY,
		setting_value TEXT NOT NULL
	) ENGINE=InnoDB`,
}
