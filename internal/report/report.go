// Package report computes dashboard and range statistics from the local store.
//
// Every function rescans the collections it needs; nothing is cached.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailbill/billsync/internal/schema"
)

// DateLayout is the calendar date format of invoice and expense dates.
const DateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Source is the read side of the local store.
type Source interface {
	Customers(ctx context.Context) ([]schema.Customer, error)
	Invoices(ctx context.Context) ([]schema.Invoice, error)
	Expenses(ctx context.Context) ([]schema.Expense, error)
}

// DashboardStats are the headline figures of the dashboard.
type DashboardStats struct {
	Date            string          `json:"date"`
	TodaySales      decimal.Decimal `json:"today_sales"`
	MonthSales      decimal.Decimal `json:"month_sales"`
	PendingPayments decimal.Decimal `json:"pending_payments"`
	TotalCustomers  int             `json:"total_customers"`
}

// Dashboard sums invoices dated today and this month up to today, and the
// open balance of every invoice not marked paid.
func Dashboard(ctx context.Context, src Source, today time.Time) (DashboardStats, error) {
	invoices, err := src.Invoices(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("failed to load invoices: %w", err)
	}
	customers, err := src.Customers(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("failed to load customers: %w", err)
	}

	day := today.Format(DateLayout)
	month := day[:len("2006-01")]
	stats := DashboardStats{Date: day, TotalCustomers: len(customers)}

	for i := range invoices {
		inv := &invoices[i]
		total := inv.Total.Decimal
		if inv.Date == day {
			stats.TodaySales = stats.TodaySales.Add(total)
		}
		if len(inv.Date) >= len(month) && inv.Date[:len(month)] == month && inv.Date <= day {
			stats.MonthSales = stats.MonthSales.Add(total)
		}
		if !inv.IsPaid() {
			stats.PendingPayments = stats.PendingPayments.Add(inv.Balance())
		}
	}
	return stats, nil
}

// CustomerStats are one customer's lifetime totals.
type CustomerStats struct {
	CustomerID    int64           `json:"customer_id"`
	TotalPurchase decimal.Decimal `json:"total_purchase"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Pending       decimal.Decimal `json:"pending"`
	Invoices      int             `json:"invoices"`
}

// Customer totals every invoice of customer id.
func Customer(ctx context.Context, src Source, id int64) (CustomerStats, error) {
	invoices, err := src.Invoices(ctx)
	if err != nil {
		return CustomerStats{}, fmt.Errorf("failed to load invoices: %w", err)
	}

	stats := CustomerStats{CustomerID: id}
	for _, inv := range invoices {
		if inv.CustomerID != id {
			continue
		}
		stats.Invoices++
		stats.TotalPurchase = stats.TotalPurchase.Add(inv.Total.Decimal)
		stats.TotalPaid = stats.TotalPaid.Add(inv.AmountPaid)
	}
	stats.Pending = stats.TotalPurchase.Sub(stats.TotalPaid)
	return stats, nil
}

// CategoryTotal is one expense category of a range report.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	// Percent of the range's total expenses, one decimal place.
	Percent decimal.Decimal `json:"percent"`
}

// RangeReport summarizes sales and expenses between two dates.
type RangeReport struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalPending  decimal.Decimal `json:"total_pending"`
	Invoices      int             `json:"invoices"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Categories    []CategoryTotal `json:"categories"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

// Range reports invoices and expenses dated from..to inclusive. Categories
// are ordered by amount, largest first.
func Range(ctx context.Context, src Source, from, to time.Time) (RangeReport, error) {
	if to.Before(from) {
		return RangeReport{}, fmt.Errorf("invalid range: %s is before %s", to.Format(DateLayout), from.Format(DateLayout))
	}
	invoices, err := src.Invoices(ctx)
	if err != nil {
		return RangeReport{}, fmt.Errorf("failed to load invoices: %w", err)
	}
	expenses, err := src.Expenses(ctx)
	if err != nil {
		return RangeReport{}, fmt.Errorf("failed to load expenses: %w", err)
	}

	r := RangeReport{From: from.Format(DateLayout), To: to.Format(DateLayout), Categories: []CategoryTotal{}}
	inRange := func(date string) bool { return date >= r.From && date <= r.To }

	for _, inv := range invoices {
		if !inRange(inv.Date) {
			continue
		}
		r.Invoices++
		r.TotalSales = r.TotalSales.Add(inv.Total.Decimal)
		r.TotalPaid = r.TotalPaid.Add(inv.AmountPaid)
	}
	r.TotalPending = r.TotalSales.Sub(r.TotalPaid)

	byCategory := map[string]decimal.Decimal{}
	for _, e := range expenses {
		if !inRange(e.Date) {
			continue
		}
		r.TotalExpenses = r.TotalExpenses.Add(e.Amount.Decimal)
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount.Decimal)
	}
	for cat, amount := range byCategory {
		pct := decimal.Zero
		if r.TotalExpenses.IsPositive() {
			pct = amount.Div(r.TotalExpenses).Mul(hundred).Round(1)
		}
		r.Categories = append(r.Categories, CategoryTotal{Category: cat, Amount: amount, Percent: pct})
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		a, b := r.Categories[i], r.Categories[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})

	r.NetProfit = r.TotalPaid.Sub(r.TotalExpenses)
	return r, nil
}

// Recent returns the newest n invoices, highest id first.
func Recent(ctx context.Context, src Source, n int) ([]schema.Invoice, error) {
	invoices, err := src.Invoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].ID > invoices[j].ID })
	if n >= 0 && len(invoices) > n {
		invoices = invoices[:n]
	}
	return invoices, nil
}
