package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/upsert"
)

func parsedCommand(t *testing.T, addFlags func(*cobra.Command), args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "edit"}
	addFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("Parse(%v) failed: %v", args, err)
	}
	return cmd
}

func TestEditCustomer_OnlyGivenFields(t *testing.T) {
	c := &schema.Customer{ID: 3, Name: "Asha", Phone: "1", Email: "a@example.com", Address: "Market Rd", CreatedAt: "2024-01-01T09:00:00Z"}
	editCustomer(parsedCommand(t, addCustomerEditFlags, "--phone", "2", "--email="), c)

	want := schema.Customer{ID: 3, Name: "Asha", Phone: "2", Address: "Market Rd", CreatedAt: "2024-01-01T09:00:00Z"}
	if *c != want {
		t.Errorf("editCustomer() = %+v, want %+v", *c, want)
	}
}

func TestEditProduct_OnlyGivenFields(t *testing.T) {
	p := &schema.Product{ID: 4, Name: "Pen", SKU: "P-1", Price: schema.Money(decimal.NewFromInt(10)), Stock: 5, Tax: decimal.NewFromInt(5)}
	editProduct(parsedCommand(t, addProductEditFlags, "--price", "12.50", "--stock", "0"), p)

	if p.Name != "Pen" || p.SKU != "P-1" || !p.Tax.Equal(decimal.NewFromInt(5)) {
		t.Errorf("untouched fields changed: %+v", p)
	}
	if !p.Price.Decimal.Equal(decimal.RequireFromString("12.50")) || p.Stock != 0 {
		t.Errorf("price/stock = %s/%d, want 12.50/0", p.Price.Decimal, p.Stock)
	}
}

func TestEditCustomer_ReplacesStoredRecord(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenContext(ctx, filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	var id int64
	err = db.WithTx(ctx, func(tx *store.Tx) error {
		id, err = upsert.Customer(ctx, tx, upsert.Create(schema.Customer{Name: "Asha", Phone: "1", Address: "Market Rd"}))
		return err
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	before, err := db.Customer(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	c := *before
	editCustomer(parsedCommand(t, addCustomerEditFlags, "--name", "Asha Rao"), &c)
	err = db.WithTx(ctx, func(tx *store.Tx) error {
		_, err := upsert.Customer(ctx, tx, upsert.Replace(id, c))
		return err
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	after, err := db.Customer(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if after.Name != "Asha Rao" || after.Address != "Market Rd" || after.CreatedAt != before.CreatedAt {
		t.Errorf("stored customer = %+v, want renamed with address and created_at kept", after)
	}
	if n, _ := db.Count(ctx, schema.Customers); n != 1 {
		t.Errorf("edit created a new record: %d customers", n)
	}
}
