// Package schema defines the billing records shared by the local store, the
// authoritative store and the sync transport.
//
// Every record has the same JSON shape on disk, on the wire and in backups.
// Money, quantities and percentages are exact decimals and serialize as JSON
// strings; numbers are accepted on input. Dates are YYYY-MM-DD strings and
// created_at is an RFC 3339 timestamp.
package schema

import (
	"github.com/shopspring/decimal"
)

// Collection names one of the five record collections.
type Collection string

const (
	Customers Collection = "customers"
	Products  Collection = "products"
	Invoices  Collection = "invoices"
	Expenses  Collection = "expenses"
	Settings  Collection = "settings"
)

// ApplyOrder is the fixed order in which a payload is applied to a store.
// Customers precede invoices so the invoice reference always resolves.
var ApplyOrder = []Collection{Customers, Products, Invoices, Expenses, Settings}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	switch c {
	case Customers, Products, Invoices, Expenses, Settings:
		return true
	}
	return false
}

// Customer is a buyer that invoices are issued to.
type Customer struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
}

// Product is a sellable item. Tax is a percentage applied per invoice line.
type Product struct {
	ID        int64               `json:"id,omitempty"`
	Name      string              `json:"name" validate:"required"`
	SKU       string              `json:"sku"`
	Price     decimal.NullDecimal `json:"price" validate:"required,nonneg"`
	Stock     int64               `json:"stock" validate:"gte=0"`
	Category  string              `json:"category"`
	Tax       decimal.Decimal     `json:"tax" validate:"percent"`
	CreatedAt string              `json:"created_at"`
}

// Invoice is a bill issued to a customer. The stored totals are whatever the
// creator wrote; stores never recompute them.
type Invoice struct {
	ID            int64               `json:"id,omitempty"`
	InvoiceNumber int64               `json:"invoice_number" validate:"required"`
	CustomerID    int64               `json:"customer_id" validate:"required"`
	Date          string              `json:"date" validate:"required,datetime=2006-01-02"`
	DueDate       string              `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Subtotal      decimal.NullDecimal `json:"subtotal" validate:"required,nonneg"`
	Tax           decimal.NullDecimal `json:"tax" validate:"required,nonneg"`
	Total         decimal.NullDecimal `json:"total" validate:"required,nonneg"`
	Status        string              `json:"status" validate:"required,oneof=unpaid partial paid"`
	AmountPaid    decimal.Decimal     `json:"amount_paid" validate:"nonneg"`
	Notes         string              `json:"notes"`
	CreatedAt     string              `json:"created_at"`
	Items         []InvoiceItem       `json:"items" validate:"dive"`
}

// Invoice statuses.
const (
	StatusUnpaid  = "unpaid"
	StatusPartial = "partial"
	StatusPaid    = "paid"
)

// InvoiceItem is one line of an invoice. Items belong to exactly one invoice
// and are always replaced as a whole set.
type InvoiceItem struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"nonneg"`
	Price     decimal.Decimal `json:"price" validate:"nonneg"`
	Tax       decimal.Decimal `json:"tax" validate:"percent"`
	Total     decimal.Decimal `json:"total" validate:"nonneg"`
}

// Expense is money spent by the business.
type Expense struct {
	ID          int64               `json:"id,omitempty"`
	Date        string              `json:"date" validate:"required,datetime=2006-01-02"`
	Category    string              `json:"category" validate:"required"`
	Description string              `json:"description"`
	Amount      decimal.NullDecimal `json:"amount" validate:"required,nonneg"`
	CreatedAt   string              `json:"created_at"`
}

// Setting is a single key/value pair of the flat settings map.
type Setting struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// Payload is the full record graph exchanged by push, pull and backups.
type Payload struct {
	SchemaVersion string     `json:"schema_version,omitempty"`
	Customers     []Customer `json:"customers"`
	Products      []Product  `json:"products"`
	Invoices      []Invoice  `json:"invoices"`
	Expenses      []Expense  `json:"expenses"`
	Settings      []Setting  `json:"settings"`
	ExportedAt    string     `json:"exported_at,omitempty"`
}

// Len returns the number of records of collection c carried by the payload.
func (p *Payload) Len(c Collection) int {
	switch c {
	case Customers:
		return len(p.Customers)
	case Products:
		return len(p.Products)
	case Invoices:
		return len(p.Invoices)
	case Expenses:
		return len(p.Expenses)
	case Settings:
		return len(p.Settings)
	}
	return 0
}

// Total returns the number of records across all collections.
func (p *Payload) Total() int {
	n := 0
	for _, c := range ApplyOrder {
		n += p.Len(c)
	}
	return n
}

// Money wraps d as a present decimal for the required money fields.
func Money(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
