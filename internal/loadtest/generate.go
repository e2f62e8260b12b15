// Package loadtest generates synthetic business data and drives concurrent
// sync traffic against a server.
//
// Generated data is deterministic for a given seed, so a shop can be seeded
// the same way on several machines and load test runs can be compared.
package loadtest

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailbill/billsync/internal/schema"
)

// Sizes is the number of records of each collection to generate.
type Sizes struct {
	Customers int
	Products  int
	Invoices  int
	Expenses  int
}

// DefaultSizes is a small shop with a month or two of activity.
func DefaultSizes() Sizes {
	return Sizes{Customers: 50, Products: 30, Invoices: 200, Expenses: 60}
}

// Options tunes generation.
type Options struct {
	// Seed for the random source (default: 42)
	Seed int64

	// Days of history invoices and expenses are spread over, ending at Now
	// (default: 60)
	Days int

	// Now anchors generated dates (default: time.Now)
	Now time.Time
}

var (
	firstNames = []string{"Asha", "Ravi", "Meera", "Arjun", "Priya", "Kiran", "Sunita", "Vikram", "Lakshmi", "Rahul", "Divya", "Sanjay"}
	lastNames  = []string{"Sharma", "Iyer", "Patel", "Reddy", "Nair", "Gupta", "Rao", "Singh", "Menon", "Das"}

	productNames = []string{"Rice 5kg", "Wheat Flour 1kg", "Sugar 1kg", "Tea 250g", "Coffee 200g", "Sunflower Oil 1L", "Toor Dal 1kg", "Salt 1kg", "Biscuits", "Soap Bar", "Shampoo 200ml", "Toothpaste"}
	categories   = []string{"Groceries", "Beverages", "Personal Care", "Household"}
	taxRates     = []int64{0, 5, 12, 18}

	expenseCategories = []string{"Rent", "Electricity", "Salaries", "Transport", "Supplies", "Maintenance"}
)

// Generate builds a payload with s records. IDs start at 1 in every
// collection, invoice numbers follow invoice ids and every invoice refers to
// a generated customer and generated products. Totals are computed the way
// the invoice command computes them.
func Generate(s Sizes, opts Options) (*schema.Payload, error) {
	if s.Customers < 0 || s.Products < 0 || s.Invoices < 0 || s.Expenses < 0 {
		return nil, fmt.Errorf("record counts must not be negative")
	}
	if s.Invoices > 0 && (s.Customers == 0 || s.Products == 0) {
		return nil, fmt.Errorf("invoices need at least one customer and one product")
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Days <= 0 {
		opts.Days = 60
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	today := time.Date(opts.Now.Year(), opts.Now.Month(), opts.Now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -opts.Days)
	createdAt := start.Format(time.RFC3339)

	p := &schema.Payload{
		SchemaVersion: schema.Version,
		Customers:     make([]schema.Customer, 0, s.Customers),
		Products:      make([]schema.Product, 0, s.Products),
		Invoices:      make([]schema.Invoice, 0, s.Invoices),
		Expenses:      make([]schema.Expense, 0, s.Expenses),
		Settings:      schema.DefaultSettings(),
	}

	for i := 0; i < s.Customers; i++ {
		first, last := firstNames[i%len(firstNames)], lastNames[(i/len(firstNames))%len(lastNames)]
		p.Customers = append(p.Customers, schema.Customer{
			ID:        int64(i + 1),
			Name:      fmt.Sprintf("%s %s", first, last),
			Phone:     fmt.Sprintf("+91 9%04d %05d", rng.Intn(10000), i),
			Email:     fmt.Sprintf("customer%d@example.com", i+1),
			Address:   fmt.Sprintf("%d Market Road", i+1),
			CreatedAt: createdAt,
		})
	}

	for i := 0; i < s.Products; i++ {
		name := productNames[i%len(productNames)]
		if i >= len(productNames) {
			name = fmt.Sprintf("%s #%d", name, i/len(productNames)+1)
		}
		p.Products = append(p.Products, schema.Product{
			ID:        int64(i + 1),
			Name:      name,
			SKU:       fmt.Sprintf("SKU-%04d", i+1),
			Price:     schema.Money(decimal.New(int64(20+rng.Intn(480))*100+int64(rng.Intn(2))*50, -2)),
			Stock:     int64(rng.Intn(200)),
			Category:  categories[i%len(categories)],
			Tax:       decimal.NewFromInt(taxRates[rng.Intn(len(taxRates))]),
			CreatedAt: createdAt,
		})
	}

	for i := 0; i < s.Invoices; i++ {
		day := start.AddDate(0, 0, rng.Intn(opts.Days+1))
		inv := schema.Invoice{
			ID:            int64(i + 1),
			InvoiceNumber: int64(i + 1),
			CustomerID:    p.Customers[rng.Intn(len(p.Customers))].ID,
			Date:          day.Format(time.DateOnly),
			DueDate:       day.AddDate(0, 0, 15).Format(time.DateOnly),
			CreatedAt:     day.Format(time.RFC3339),
		}
		lines := 1 + rng.Intn(4)
		for j := 0; j < lines; j++ {
			prod := p.Products[rng.Intn(len(p.Products))]
			qty := decimal.NewFromInt(int64(1 + rng.Intn(5)))
			inv.Items = append(inv.Items, schema.NewItem(prod.ID, qty, prod.Price.Decimal, prod.Tax))
		}
		inv.ApplyTotals()

		// about half paid, a fifth partial, the rest open
		switch r := rng.Intn(10); {
		case r < 5:
			inv.AmountPaid = inv.Total.Decimal
		case r < 7:
			inv.AmountPaid = inv.Total.Decimal.Div(decimal.NewFromInt(2)).Round(2)
		}
		inv.Status = schema.PaymentStatus(inv.Total.Decimal, inv.AmountPaid)
		p.Invoices = append(p.Invoices, inv)
	}

	for i := 0; i < s.Expenses; i++ {
		category := expenseCategories[rng.Intn(len(expenseCategories))]
		day := start.AddDate(0, 0, rng.Intn(opts.Days+1))
		p.Expenses = append(p.Expenses, schema.Expense{
			ID:          int64(i + 1),
			Date:        day.Format(time.DateOnly),
			Category:    category,
			Description: fmt.Sprintf("%s for %s", category, day.Format("Jan 2")),
			Amount:      schema.Money(decimal.New(int64(100+rng.Intn(9900))*100, -2)),
			CreatedAt:   day.Format(time.RFC3339),
		})
	}

	return p, nil
}
