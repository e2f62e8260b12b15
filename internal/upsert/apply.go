package upsert

import (
	"context"
	"fmt"

	"github.com/retailbill/billsync/internal/schema"
)

// Summary counts the records written by Apply, per collection.
type Summary struct {
	Customers int `json:"customers"`
	Products  int `json:"products"`
	Invoices  int `json:"invoices"`
	Expenses  int `json:"expenses"`
	Settings  int `json:"settings"`
}

// Total returns the number of records written.
func (s Summary) Total() int {
	return s.Customers + s.Products + s.Invoices + s.Expenses + s.Settings
}

// Apply upserts every record of p in schema.ApplyOrder and stops at the first
// failure. Records with an id replace, records without one are created. The
// caller owns the transaction behind t and must roll it back on error.
func Apply(ctx context.Context, t Target, p *schema.Payload) (Summary, error) {
	var sum Summary
	if p == nil {
		return sum, nil
	}

	for i, rec := range p.Customers {
		req, err := FromID("customer", rec.ID, rec)
		if err == nil {
			_, err = Customer(ctx, t, req)
		}
		if err != nil {
			return sum, fmt.Errorf("customers[%d]: %w", i, err)
		}
		sum.Customers++
	}

	for i, rec := range p.Products {
		req, err := FromID("product", rec.ID, rec)
		if err == nil {
			_, err = Product(ctx, t, req)
		}
		if err != nil {
			return sum, fmt.Errorf("products[%d]: %w", i, err)
		}
		sum.Products++
	}

	for i, rec := range p.Invoices {
		req, err := FromID("invoice", rec.ID, rec)
		if err == nil {
			_, err = Invoice(ctx, t, req)
		}
		if err != nil {
			return sum, fmt.Errorf("invoices[%d]: %w", i, err)
		}
		sum.Invoices++
	}

	for i, rec := range p.Expenses {
		req, err := FromID("expense", rec.ID, rec)
		if err == nil {
			_, err = Expense(ctx, t, req)
		}
		if err != nil {
			return sum, fmt.Errorf("expenses[%d]: %w", i, err)
		}
		sum.Expenses++
	}

	for i, s := range p.Settings {
		if err := Setting(ctx, t, s); err != nil {
			return sum, fmt.Errorf("settings[%d]: %w", i, err)
		}
		sum.Settings++
	}

	return sum, nil
}
