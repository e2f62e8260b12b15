package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/upsert"
)

const invoiceSequence = "invoice_number"

var _ upsert.Target = (*Tx)(nil)

// NextInvoiceNumber reserves the next invoice number. Numbers are monotonic:
// the counter never goes below the highest number already stored and a
// reserved number is never handed out twice, even if the invoice that used
// it is later replaced by a pull.
func (tx *Tx) NextInvoiceNumber(ctx context.Context) (int64, error) {
	var highest sql.NullInt64
	err := tx.tx.QueryRowContext(ctx,
		`SELECT MAX(CAST(json_extract(doc, '$.invoice_number') AS INTEGER)) FROM invoices`).Scan(&highest)
	if err != nil {
		return 0, &schema.StoreError{Op: "next invoice number", Collection: schema.Invoices, Err: err}
	}

	var seq sql.NullInt64
	err = tx.tx.QueryRowContext(ctx, `SELECT value FROM sequences WHERE name = ?`, invoiceSequence).Scan(&seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, &schema.StoreError{Op: "next invoice number", Collection: schema.Invoices, Err: err}
	}

	next := max(highest.Int64, seq.Int64) + 1
	_, err = tx.tx.ExecContext(ctx, `
	INSERT INTO sequences (name, value) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, invoiceSequence, next)
	if err != nil {
		return 0, &schema.StoreError{Op: "next invoice number", Collection: schema.Invoices, Err: err}
	}
	return next, nil
}

// NextInvoiceNumber reserves the next invoice number in its own transaction.
func (db *DB) NextInvoiceNumber(ctx context.Context) (int64, error) {
	var n int64
	err := db.WithTx(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.NextInvoiceNumber(ctx)
		return err
	})
	return n, err
}

// Export reads the whole store into a payload for pushing or backup. Local
// bookkeeping settings are left out.
func (db *DB) Export(ctx context.Context) (*schema.Payload, error) {
	p := &schema.Payload{SchemaVersion: schema.Version}

	err := db.WithTx(ctx, func(tx *Tx) error {
		var err error
		if p.Customers, err = all[schema.Customer](ctx, tx.tx, schema.Customers); err != nil {
			return err
		}
		if p.Products, err = all[schema.Product](ctx, tx.tx, schema.Products); err != nil {
			return err
		}
		if p.Invoices, err = all[schema.Invoice](ctx, tx.tx, schema.Invoices); err != nil {
			return err
		}
		if p.Expenses, err = all[schema.Expense](ctx, tx.tx, schema.Expenses); err != nil {
			return err
		}
		settings, err := listSettings(ctx, tx.tx)
		if err != nil {
			return err
		}
		p.Settings = syncedSettings(settings)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export store: %w", err)
	}

	p.ExportedAt = time.Now().UTC().Format(time.RFC3339)
	return p, nil
}

// Import upserts every record of p into the store inside one transaction, so
// a failed import leaves the store exactly as it was. Local bookkeeping
// settings carried by p are ignored.
func (db *DB) Import(ctx context.Context, p *schema.Payload) (upsert.Summary, error) {
	if err := schema.CheckVersion(p.SchemaVersion); err != nil {
		return upsert.Summary{}, &schema.StoreError{Op: "import", Err: err}
	}

	in := *p
	in.Settings = syncedSettings(p.Settings)

	var sum upsert.Summary
	err := db.WithTx(ctx, func(tx *Tx) error {
		var err error
		sum, err = upsert.Apply(ctx, tx, &in)
		return err
	})
	if err != nil {
		return upsert.Summary{}, fmt.Errorf("failed to import payload: %w", err)
	}
	return sum, nil
}

func syncedSettings(settings []schema.Setting) []schema.Setting {
	out := make([]schema.Setting, 0, len(settings))
	for _, s := range settings {
		if !schema.IsLocalSetting(s.Key) {
			out = append(out, s)
		}
	}
	return out
}
