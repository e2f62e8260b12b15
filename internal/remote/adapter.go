// Package remote is the authoritative store adapter.
//
// An Adapter accepts full-graph payloads and applies them to a relational
// database in one transaction, or serializes the whole database back into a
// payload. It keeps no state between calls; everything lives in the
// database.
//
// Apply writes collections in a fixed order (customers, products, invoices,
// expenses, settings) through the same upsert rules the client uses. If any
// record fails, the whole batch is rolled back and Apply returns a
// *schema.SyncError carrying the cause.
package remote

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/upsert"
)

// Adapter applies and exports payloads against the authoritative store.
type Adapter struct {
	db      *sql.DB
	dialect Dialect
	log     logrus.FieldLogger
	now     func() time.Time
}

// Open connects to the authoritative store and creates any missing tables.
//
// If logger is nil, the standard logrus logger is used.
func Open(ctx context.Context, dialect Dialect, dsn string, logger logrus.FieldLogger) (*Adapter, error) {
	source, err := dialect.dataSource(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.driverName(), source)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	a := New(db, dialect, logger)
	if err := a.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// New wraps an open database. The caller keeps ownership of db unless it
// calls Close on the adapter.
func New(db *sql.DB, dialect Dialect, logger logrus.FieldLogger) *Adapter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Adapter{
		db:      db,
		dialect: dialect,
		log:     logger.WithField("component", "remote"),
		now:     time.Now,
	}
}

// Dialect returns the adapter's SQL dialect.
func (a *Adapter) Dialect() Dialect {
	return a.dialect
}

// Close closes the database.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping checks that the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// InitSchema creates the tables and indexes of the authoritative store. It is
// idempotent and additive only.
func (a *Adapter) InitSchema(ctx context.Context) error {
	for _, stmt := range a.dialect.schemaStatements() {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Apply upserts every record of p in one transaction. On any failure nothing
// is committed and the error is a *schema.SyncError.
func (a *Adapter) Apply(ctx context.Context, p *schema.Payload) (upsert.Summary, error) {
	if p == nil {
		p = &schema.Payload{}
	}
	if err := schema.CheckVersion(p.SchemaVersion); err != nil {
		return upsert.Summary{}, &schema.SyncError{Err: err}
	}

	start := a.now()
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return upsert.Summary{}, &schema.SyncError{Message: "failed to begin transaction", Err: err}
	}
	defer tx.Rollback()

	sum, err := upsert.Apply(ctx, &txTarget{tx: tx, dialect: a.dialect}, p)
	if err != nil {
		a.log.WithError(err).WithField("records", p.Total()).Warn("apply rolled back")
		return upsert.Summary{}, &schema.SyncError{Err: err}
	}

	if err := tx.Commit(); err != nil {
		return upsert.Summary{}, &schema.SyncError{Message: "failed to commit transaction", Err: err}
	}

	a.log.WithFields(logrus.Fields{
		"customers": sum.Customers,
		"products":  sum.Products,
		"invoices":  sum.Invoices,
		"expenses":  sum.Expenses,
		"settings":  sum.Settings,
		"duration":  a.now().Sub(start).String(),
	}).Info("payload applied")
	return sum, nil
}

// Export reads the whole authoritative store: customers, products and
// expenses ascending by id, settings ascending by key, invoices ascending by
// id with their items in insertion order. Export never writes.
func (a *Adapter) Export(ctx context.Context) (*schema.Payload, error) {
	p := &schema.Payload{SchemaVersion: schema.Version}
	var err error

	if p.Customers, err = a.exportCustomers(ctx); err != nil {
		return nil, err
	}
	if p.Products, err = a.exportProducts(ctx); err != nil {
		return nil, err
	}
	if p.Invoices, err = a.exportInvoices(ctx); err != nil {
		return nil, err
	}
	if p.Expenses, err = a.exportExpenses(ctx); err != nil {
		return nil, err
	}
	if p.Settings, err = a.exportSettings(ctx); err != nil {
		return nil, err
	}

	p.ExportedAt = a.now().UTC().Format(time.RFC3339)
	return p, nil
}

func (a *Adapter) exportCustomers(ctx context.Context) ([]schema.Customer, error) {
	rows, err := a.db.QueryContext(ctx, customersTable.selectSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	out := []schema.Customer{}
	for rows.Next() {
		var c schema.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (a *Adapter) exportProducts(ctx context.Context) ([]schema.Product, error) {
	rows, err := a.db.QueryContext(ctx, productsTable.selectSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	out := []schema.Product{}
	for rows.Next() {
		var p schema.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Category, &p.Tax, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (a *Adapter) exportInvoices(ctx context.Context) ([]schema.Invoice, error) {
	items, err := a.exportItems(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, invoicesTable.selectSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	out := []schema.Invoice{}
	for rows.Next() {
		var inv schema.Invoice
		var dueDate sql.NullString
		err := rows.Scan(
			&inv.ID,
			&inv.InvoiceNumber,
			&inv.CustomerID,
			&inv.Date,
			&dueDate,
			&inv.Subtotal,
			&inv.Tax,
			&inv.Total,
			&inv.Status,
			&inv.AmountPaid,
			&inv.Notes,
			&inv.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.DueDate = dueDate.String
		inv.Items = items[inv.ID]
		if inv.Items == nil {
			inv.Items = []schema.InvoiceItem{}
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (a *Adapter) exportItems(ctx context.Context) (map[int64][]schema.InvoiceItem, error) {
	rows, err := a.db.QueryContext(ctx, `
	SELECT invoice_id, product_id, quantity, price, tax, total
	FROM invoice_items
	ORDER BY invoice_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	items := map[int64][]schema.InvoiceItem{}
	for rows.Next() {
		var invoiceID int64
		var it schema.InvoiceItem
		if err := rows.Scan(&invoiceID, &it.ProductID, &it.Quantity, &it.Price, &it.Tax, &it.Total); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items[invoiceID] = append(items[invoiceID], it)
	}
	return items, rows.Err()
}

func (a *Adapter) exportExpenses(ctx context.Context) ([]schema.Expense, error) {
	rows, err := a.db.QueryContext(ctx, expensesTable.selectSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	out := []schema.Expense{}
	for rows.Next() {
		var e schema.Expense
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Description, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *Adapter) exportSettings(ctx context.Context) ([]schema.Setting, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT setting_key, setting_value FROM settings ORDER BY setting_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	out := []schema.Setting{}
	for rows.Next() {
		var s schema.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
