// Package upsert merges incoming records into a store.
//
// Every write is an explicit request: Create asks the store to assign a new
// id, Replace overwrites the full record stored under a known id. Records are
// validated before the first store call, so a rejected request never leaves
// a partial write behind.
//
// Functions in this package write through a Target, which is always a
// transaction owned by the caller. An invoice upsert writes its header and
// replaces its item set inside that transaction, so both land together or
// not at all.
package upsert

import (
	"context"
	"fmt"
	"time"

	"github.com/retailbill/billsync/internal/schema"
)

// Target is the transactional store view that upserts write through.
// Both the local store and the authoritative store provide one.
type Target interface {
	// Add inserts rec and returns the id the store assigned.
	Add(ctx context.Context, c schema.Collection, rec any) (int64, error)

	// Update stores rec under id, replacing any existing record.
	Update(ctx context.Context, c schema.Collection, id int64, rec any) error

	// Exists reports whether a record with id is stored in c.
	Exists(ctx context.Context, c schema.Collection, id int64) (bool, error)

	// ReplaceItems deletes every item of the invoice and inserts items in order.
	ReplaceItems(ctx context.Context, invoiceID int64, items []schema.InvoiceItem) error

	// SetSetting stores value under key, replacing any previous value.
	SetSetting(ctx context.Context, key, value string) error
}

// Op selects how a request is written.
type Op int

const (
	// OpCreate inserts a new record; the store assigns the id.
	OpCreate Op = iota
	// OpReplace overwrites the record stored under Request.ID.
	OpReplace
)

func (o Op) String() string {
	if o == OpReplace {
		return "replace"
	}
	return "create"
}

// Request is a tagged upsert input for a record of type T.
type Request[T any] struct {
	Op     Op
	ID     int64
	Fields T
}

// Create requests a new record built from fields. Any id in fields is ignored.
func Create[T any](fields T) Request[T] {
	return Request[T]{Op: OpCreate, Fields: fields}
}

// Replace requests that the record stored under id be replaced by fields.
func Replace[T any](id int64, fields T) Request[T] {
	return Request[T]{Op: OpReplace, ID: id, Fields: fields}
}

// FromID maps a record carried in a sync payload to a request: a positive id
// replaces, a zero id creates.
func FromID[T any](entity string, id int64, fields T) (Request[T], error) {
	switch {
	case id > 0:
		return Replace(id, fields), nil
	case id == 0:
		return Create(fields), nil
	}
	return Request[T]{}, &schema.ValidationError{Entity: entity, Field: "id", Rule: "gte"}
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// prepare checks the request tag and returns the id and created_at the
// record must carry when written.
func prepare[T any](entity string, req Request[T], createdAt string) (int64, string, error) {
	switch req.Op {
	case OpCreate:
		if createdAt == "" {
			createdAt = now().Format(time.RFC3339)
		}
		return 0, createdAt, nil
	case OpReplace:
		if req.ID <= 0 {
			return 0, "", &schema.ValidationError{Entity: entity, Field: "id", Rule: "required"}
		}
		return req.ID, createdAt, nil
	}
	return 0, "", fmt.Errorf("unknown upsert op %d", req.Op)
}

func write[T any](ctx context.Context, t Target, c schema.Collection, req Request[T], rec any) (int64, error) {
	if req.Op == OpCreate {
		return t.Add(ctx, c, rec)
	}
	if err := t.Update(ctx, c, req.ID, rec); err != nil {
		return 0, err
	}
	return req.ID, nil
}

// Customer upserts a customer and returns its id.
func Customer(ctx context.Context, t Target, req Request[schema.Customer]) (int64, error) {
	rec := req.Fields
	id, createdAt, err := prepare("customer", req, rec.CreatedAt)
	if err != nil {
		return 0, err
	}
	rec.ID, rec.CreatedAt = id, createdAt
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	return write(ctx, t, schema.Customers, req, rec)
}

// Product upserts a product and returns its id.
func Product(ctx context.Context, t Target, req Request[schema.Product]) (int64, error) {
	rec := req.Fields
	id, createdAt, err := prepare("product", req, rec.CreatedAt)
	if err != nil {
		return 0, err
	}
	rec.ID, rec.CreatedAt = id, createdAt
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	return write(ctx, t, schema.Products, req, rec)
}

// Expense upserts an expense and returns its id.
func Expense(ctx context.Context, t Target, req Request[schema.Expense]) (int64, error) {
	rec := req.Fields
	id, createdAt, err := prepare("expense", req, rec.CreatedAt)
	if err != nil {
		return 0, err
	}
	rec.ID, rec.CreatedAt = id, createdAt
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	return write(ctx, t, schema.Expenses, req, rec)
}

// Invoice upserts an invoice header, then replaces its whole item set with
// the request's items. Totals are stored exactly as given.
func Invoice(ctx context.Context, t Target, req Request[schema.Invoice]) (int64, error) {
	rec := req.Fields
	id, createdAt, err := prepare("invoice", req, rec.CreatedAt)
	if err != nil {
		return 0, err
	}
	rec.ID, rec.CreatedAt = id, createdAt
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	ok, err := t.Exists(ctx, schema.Customers, rec.CustomerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &schema.ValidationError{Entity: "invoice", Field: "customer_id", Rule: "exists"}
	}

	items := rec.Items
	if items == nil {
		items = []schema.InvoiceItem{}
	}
	rec.Items = nil

	id, err = write(ctx, t, schema.Invoices, req, rec)
	if err != nil {
		return 0, err
	}
	if err := t.ReplaceItems(ctx, id, items); err != nil {
		return 0, fmt.Errorf("failed to replace items of invoice %d: %w", id, err)
	}
	return id, nil
}

// Setting replaces the value stored under the setting's key.
func Setting(ctx context.Context, t Target, s schema.Setting) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return t.SetSetting(ctx, s.Key, s.Value)
}
