package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/retailbill/billsync/internal/schema"
)

func checkDocumentCollection(op string, c schema.Collection) error {
	if !c.Valid() {
		return &schema.StoreError{Op: op, Collection: c, Err: errors.New("unknown collection")}
	}
	if c == schema.Settings {
		return &schema.StoreError{Op: op, Collection: c, Err: errors.New("settings are keyed; use the setting accessors")}
	}
	return nil
}

func marshalDoc(op string, c schema.Collection, rec any) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", &schema.StoreError{Op: op, Collection: c, Err: fmt.Errorf("failed to marshal record: %w", err)}
	}
	return string(data), nil
}

func add(ctx context.Context, q execer, c schema.Collection, rec any) (int64, error) {
	if err := checkDocumentCollection("add", c); err != nil {
		return 0, err
	}
	doc, err := marshalDoc("add", c, rec)
	if err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (doc) VALUES (json(?))`, c), doc)
	if err != nil {
		return 0, &schema.StoreError{Op: "add", Collection: c, Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &schema.StoreError{Op: "add", Collection: c, Err: err}
	}
	return id, nil
}

func update(ctx context.Context, q execer, c schema.Collection, id int64, rec any) error {
	if err := checkDocumentCollection("update", c); err != nil {
		return err
	}
	if id <= 0 {
		return &schema.StoreError{Op: "update", Collection: c, Err: fmt.Errorf("invalid id %d", id)}
	}
	doc, err := marshalDoc("update", c, rec)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, doc) VALUES (?, json(?))
	ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, c)
	if _, err := q.ExecContext(ctx, query, id, doc); err != nil {
		return &schema.StoreError{Op: "update", Collection: c, Err: err}
	}
	return nil
}

func remove(ctx context.Context, q execer, c schema.Collection, id int64) error {
	if err := checkDocumentCollection("delete", c); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c), id); err != nil {
		return &schema.StoreError{Op: "delete", Collection: c, Err: err}
	}
	return nil
}

// get decodes the record stored under id into dest. The stored document's id
// field always reflects the row id.
func get(ctx context.Context, q execer, c schema.Collection, id int64, dest any) error {
	if err := checkDocumentCollection("get", c); err != nil {
		return err
	}
	var doc string
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT json_set(doc, '$.id', id) FROM %s WHERE id = ?`, c), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", c, id, ErrNotFound)
	}
	if err != nil {
		return &schema.StoreError{Op: "get", Collection: c, Err: err}
	}
	if err := json.Unmarshal([]byte(doc), dest); err != nil {
		return &schema.StoreError{Op: "get", Collection: c, Err: fmt.Errorf("failed to unmarshal record %d: %w", id, err)}
	}
	return nil
}

func exists(ctx context.Context, q execer, c schema.Collection, id int64) (bool, error) {
	if err := checkDocumentCollection("exists", c); err != nil {
		return false, err
	}
	var n int
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ?`, c), id).Scan(&n)
	if err != nil {
		return false, &schema.StoreError{Op: "exists", Collection: c, Err: err}
	}
	return n > 0, nil
}

func queryDocs(ctx context.Context, q execer, op string, c schema.Collection, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &schema.StoreError{Op: op, Collection: c, Err: err}
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, &schema.StoreError{Op: op, Collection: c, Err: err}
		}
		docs = append(docs, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, &schema.StoreError{Op: op, Collection: c, Err: err}
	}
	return docs, nil
}

func getAll(ctx context.Context, q execer, c schema.Collection) ([]json.RawMessage, error) {
	if err := checkDocumentCollection("get all", c); err != nil {
		return nil, err
	}
	return queryDocs(ctx, q, "get all", c, fmt.Sprintf(`SELECT json_set(doc, '$.id', id) FROM %s ORDER BY id`, c))
}

func hasIndex(c schema.Collection, field string) bool {
	for _, f := range Indexes[c] {
		if f == field {
			return true
		}
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func search(ctx context.Context, q execer, c schema.Collection, index, query string) ([]json.RawMessage, error) {
	if err := checkDocumentCollection("search", c); err != nil {
		return nil, err
	}
	if !hasIndex(c, index) {
		return nil, &schema.StoreError{Op: "search", Collection: c, Err: fmt.Errorf("no index %q", index)}
	}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	sqlQuery := fmt.Sprintf(`
	SELECT json_set(doc, '$.id', id) FROM %s
	WHERE lower(CAST(json_extract(doc, '$.%s') AS TEXT)) LIKE ? ESCAPE '\'
	ORDER BY id
	`, c, index)
	return queryDocs(ctx, q, "search", c, sqlQuery, pattern)
}

func decodeDocs[T any](c schema.Collection, docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var rec T
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, &schema.StoreError{Op: "decode", Collection: c, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

func all[T any](ctx context.Context, q execer, c schema.Collection) ([]T, error) {
	docs, err := getAll(ctx, q, c)
	if err != nil {
		return nil, err
	}
	return decodeDocs[T](c, docs)
}

func one[T any](ctx context.Context, q execer, c schema.Collection, id int64) (*T, error) {
	var rec T
	if err := get(ctx, q, c, id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Add stores rec as a new record of c and returns the assigned id.
func (db *DB) Add(ctx context.Context, c schema.Collection, rec any) (int64, error) {
	return add(ctx, db.conn, c, rec)
}

// Update replaces the full record stored under id, inserting it when no
// record with that id exists.
func (db *DB) Update(ctx context.Context, c schema.Collection, id int64, rec any) error {
	return update(ctx, db.conn, c, id, rec)
}

// Delete removes the record stored under id. Deleting a missing record is
// not an error.
func (db *DB) Delete(ctx context.Context, c schema.Collection, id int64) error {
	return remove(ctx, db.conn, c, id)
}

// Get decodes the record stored under id into dest.
// Returns an error wrapping ErrNotFound when the record is absent.
func (db *DB) Get(ctx context.Context, c schema.Collection, id int64, dest any) error {
	return get(ctx, db.conn, c, id, dest)
}

// Exists reports whether a record with id is stored in c.
func (db *DB) Exists(ctx context.Context, c schema.Collection, id int64) (bool, error) {
	return exists(ctx, db.conn, c, id)
}

// GetAll returns every record of c as JSON documents in id order.
func (db *DB) GetAll(ctx context.Context, c schema.Collection) ([]json.RawMessage, error) {
	return getAll(ctx, db.conn, c)
}

// Search returns the records of c whose index field contains query,
// ignoring case. index must be one of Indexes[c].
func (db *DB) Search(ctx context.Context, c schema.Collection, index, query string) ([]json.RawMessage, error) {
	return search(ctx, db.conn, c, index, query)
}

// Count returns the number of records stored in c.
func (db *DB) Count(ctx context.Context, c schema.Collection) (int, error) {
	table := string(c)
	if c == schema.Settings {
		table = "settings"
	} else if err := checkDocumentCollection("count", c); err != nil {
		return 0, err
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, &schema.StoreError{Op: "count", Collection: c, Err: err}
	}
	return n, nil
}

// Customers returns every customer in id order.
func (db *DB) Customers(ctx context.Context) ([]schema.Customer, error) {
	return all[schema.Customer](ctx, db.conn, schema.Customers)
}

// Products returns every product in id order.
func (db *DB) Products(ctx context.Context) ([]schema.Product, error) {
	return all[schema.Product](ctx, db.conn, schema.Products)
}

// Invoices returns every invoice, items included, in id order.
func (db *DB) Invoices(ctx context.Context) ([]schema.Invoice, error) {
	return all[schema.Invoice](ctx, db.conn, schema.Invoices)
}

// Expenses returns every expense in id order.
func (db *DB) Expenses(ctx context.Context) ([]schema.Expense, error) {
	return all[schema.Expense](ctx, db.conn, schema.Expenses)
}

// Customer returns the customer stored under id.
func (db *DB) Customer(ctx context.Context, id int64) (*schema.Customer, error) {
	return one[schema.Customer](ctx, db.conn, schema.Customers, id)
}

// Product returns the product stored under id.
func (db *DB) Product(ctx context.Context, id int64) (*schema.Product, error) {
	return one[schema.Product](ctx, db.conn, schema.Products, id)
}

// Invoice returns the invoice stored under id.
func (db *DB) Invoice(ctx context.Context, id int64) (*schema.Invoice, error) {
	return one[schema.Invoice](ctx, db.conn, schema.Invoices, id)
}

// SearchCustomers is Search over customers, decoded.
func (db *DB) SearchCustomers(ctx context.Context, index, query string) ([]schema.Customer, error) {
	docs, err := db.Search(ctx, schema.Customers, index, query)
	if err != nil {
		return nil, err
	}
	return decodeDocs[schema.Customer](schema.Customers, docs)
}

// SearchProducts is Search over products, decoded.
func (db *DB) SearchProducts(ctx context.Context, index, query string) ([]schema.Product, error) {
	docs, err := db.Search(ctx, schema.Products, index, query)
	if err != nil {
		return nil, err
	}
	return decodeDocs[schema.Product](schema.Products, docs)
}

// SearchInvoices returns the invoices whose number contains query or whose
// customer's name contains it, ignoring case.
func (db *DB) SearchInvoices(ctx context.Context, query string) ([]schema.Invoice, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	docs, err := queryDocs(ctx, db.conn, "search", schema.Invoices, `
	SELECT json_set(i.doc, '$.id', i.id) FROM invoices i
	LEFT JOIN customers c ON c.id = json_extract(i.doc, '$.customer_id')
	WHERE CAST(json_extract(i.doc, '$.invoice_number') AS TEXT) LIKE ? ESCAPE '\'
	   OR lower(json_extract(c.doc, '$.name')) LIKE ? ESCAPE '\'
	ORDER BY i.id
	`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	return decodeDocs[schema.Invoice](schema.Invoices, docs)
}

// SearchExpenses returns the expenses whose category or description contains
// query, ignoring case.
func (db *DB) SearchExpenses(ctx context.Context, query string) ([]schema.Expense, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	docs, err := queryDocs(ctx, db.conn, "search", schema.Expenses, `
	SELECT json_set(doc, '$.id', id) FROM expenses
	WHERE lower(json_extract(doc, '$.category')) LIKE ? ESCAPE '\'
	   OR lower(coalesce(json_extract(doc, '$.description'), '')) LIKE ? ESCAPE '\'
	ORDER BY id
	`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	return decodeDocs[schema.Expense](schema.Expenses, docs)
}

// Add inserts rec inside the transaction.
func (tx *Tx) Add(ctx context.Context, c schema.Collection, rec any) (int64, error) {
	return add(ctx, tx.tx, c, rec)
}

// Update replaces the record under id inside the transaction.
func (tx *Tx) Update(ctx context.Context, c schema.Collection, id int64, rec any) error {
	return update(ctx, tx.tx, c, id, rec)
}

// Delete removes the record under id inside the transaction.
func (tx *Tx) Delete(ctx context.Context, c schema.Collection, id int64) error {
	return remove(ctx, tx.tx, c, id)
}

// Get decodes the record under id inside the transaction.
func (tx *Tx) Get(ctx context.Context, c schema.Collection, id int64, dest any) error {
	return get(ctx, tx.tx, c, id, dest)
}

// Exists reports whether id is stored in c, as seen by the transaction.
func (tx *Tx) Exists(ctx context.Context, c schema.Collection, id int64) (bool, error) {
	return exists(ctx, tx.tx, c, id)
}

// ReplaceItems replaces the item set embedded in the invoice document.
func (tx *Tx) ReplaceItems(ctx context.Context, invoiceID int64, items []schema.InvoiceItem) error {
	if items == nil {
		items = []schema.InvoiceItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return &schema.StoreError{Op: "replace items", Collection: schema.Invoices, Err: err}
	}

	res, err := tx.tx.ExecContext(ctx,
		`UPDATE invoices SET doc = json_set(doc, '$.items', json(?)) WHERE id = ?`,
		string(data), invoiceID)
	if err != nil {
		return &schema.StoreError{Op: "replace items", Collection: schema.Invoices, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &schema.StoreError{Op: "replace items", Collection: schema.Invoices, Err: fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)}
	}
	return nil
}
