package remote

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/upsert"
)

// txTarget writes upserts into one authoritative store transaction.
type txTarget struct {
	tx      *sql.Tx
	dialect Dialect
}

var _ upsert.Target = (*txTarget)(nil)

func tableFor(c schema.Collection) (table, error) {
	switch c {
	case schema.Customers:
		return customersTable, nil
	case schema.Products:
		return productsTable, nil
	case schema.Invoices:
		return invoicesTable, nil
	case schema.Expenses:
		return expensesTable, nil
	}
	return table{}, fmt.Errorf("no table for collection %q", c)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowValues flattens rec into the column order of its table.
func rowValues(c schema.Collection, rec any) ([]any, error) {
	switch r := rec.(type) {
	case schema.Customer:
		return []any{r.Name, r.Phone, r.Email, r.Address, r.CreatedAt}, nil
	case schema.Product:
		return []any{r.Name, r.SKU, r.Price.Decimal.String(), r.Stock, r.Category, r.Tax.String(), r.CreatedAt}, nil
	case schema.Invoice:
		return []any{
			r.InvoiceNumber, r.CustomerID, r.Date, nullString(r.DueDate),
			r.Subtotal.Decimal.String(), r.Tax.Decimal.String(), r.Total.Decimal.String(),
			r.Status, r.AmountPaid.String(), r.Notes, r.CreatedAt,
		}, nil
	case schema.Expense:
		return []any{r.Date, r.Category, r.Description, r.Amount.Decimal.String(), r.CreatedAt}, nil
	}
	return nil, fmt.Errorf("unexpected %T record for %s", rec, c)
}

func (t *txTarget) Add(ctx context.Context, c schema.Collection, rec any) (int64, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return 0, err
	}
	vals, err := rowValues(c, rec)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, tbl.insertSQL(), vals...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", tbl.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s id: %w", tbl.name, err)
	}
	return id, nil
}

func (t *txTarget) Update(ctx context.Context, c schema.Collection, id int64, rec any) error {
	tbl, err := tableFor(c)
	if err != nil {
		return err
	}
	vals, err := rowValues(c, rec)
	if err != nil {
		return err
	}
	args := append([]any{id}, vals...)
	if _, err := t.tx.ExecContext(ctx, t.dialect.upsertSQL(tbl), args...); err != nil {
		return fmt.Errorf("failed to upsert %s %d: %w", tbl.name, id, err)
	}
	return nil
}

func (t *txTarget) Exists(ctx context.Context, c schema.Collection, id int64) (bool, error) {
	tbl, err := tableFor(c)
	if err != nil {
		return false, err
	}
	var n int
	if err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tbl.name+" WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up %s %d: %w", tbl.name, id, err)
	}
	return n > 0, nil
}

func (t *txTarget) ReplaceItems(ctx context.Context, invoiceID int64, items []schema.InvoiceItem) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID); err != nil {
		return fmt.Errorf("failed to delete items of invoice %d: %w", invoiceID, err)
	}

	query := `
	INSERT INTO invoice_items (invoice_id, product_id, quantity, price, tax, total)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, it := range items {
		_, err := t.tx.ExecContext(ctx, query,
			invoiceID,
			it.ProductID,
			it.Quantity.String(),
			it.Price.String(),
			it.Tax.String(),
			it.Total.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %d of invoice %d: %w", i, invoiceID, err)
		}
	}
	return nil
}

func (t *txTarget) SetSetting(ctx context.Context, key, value string) error {
	if _, err := t.tx.ExecContext(ctx, t.dialect.settingSQL(), key, value); err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}
