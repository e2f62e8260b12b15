package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/upsert"
	"github.com/shopspring/decimal"
)

// testDBPath returns a temporary path for test databases
func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "local.db")
}

// setupTestDB opens a fresh store that is closed when the test ends
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(testDBPath(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func scenarioInvoice(customerID int64) schema.Invoice {
	return schema.Invoice{
		InvoiceNumber: 1,
		CustomerID:    customerID,
		Date:          "2024-01-01",
		Subtotal:      schema.Money(dec("100")),
		Tax:           schema.Money(dec("5")),
		Total:         schema.Money(dec("105")),
		Status:        schema.StatusUnpaid,
		Items: []schema.InvoiceItem{
			{ProductID: 1, Quantity: dec("2"), Price: dec("50"), Tax: dec("5"), Total: dec("105")},
		},
	}
}

// TestOpen_Success tests store creation
func TestOpen_Success(t *testing.T) {
	path := testDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	v, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if v != schema.Version {
		t.Errorf("SchemaVersion() = %q, want %q", v, schema.Version)
	}
}

// TestInitSchema_Idempotent tests reopening and re-initializing a store
func TestInitSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := db.Add(ctx, schema.Customers, schema.Customer{Name: "A", Phone: "1"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		t.Fatalf("second InitSchema() failed: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	n, err := db.Count(ctx, schema.Customers)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d after reopen, want 1", n)
	}
}

// TestOpen_NewerSchemaRefused tests that a store from a newer major version is not opened
func TestOpen_NewerSchemaRefused(t *testing.T) {
	path := testDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := db.conn.Exec(`UPDATE meta SET value = 'v2.0.0' WHERE name = 'schema_version'`); err != nil {
		t.Fatalf("failed to bump version: %v", err)
	}
	db.Close()

	_, err = Open(path)
	if err == nil {
		t.Fatal("Open() should refuse a newer store")
	}
	var se *schema.StoreError
	if !errors.As(err, &se) || !errors.Is(err, schema.ErrUnsupportedVersion) {
		t.Errorf("Open() error = %v, want StoreError wrapping ErrUnsupportedVersion", err)
	}
}

// TestAdd_AssignsIDs tests surrogate id assignment and that ids are never reused
func TestAdd_AssignsIDs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for want := int64(1); want <= 3; want++ {
		id, err := db.Add(ctx, schema.Expenses, schema.Expense{Date: "2024-01-01", Category: "rent", Amount: schema.Money(dec("1"))})
		if err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
		if id != want {
			t.Errorf("Add() id = %d, want %d", id, want)
		}
	}

	if err := db.Delete(ctx, schema.Expenses, 3); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	id, err := db.Add(ctx, schema.Expenses, schema.Expense{Date: "2024-01-01", Category: "rent", Amount: schema.Money(dec("1"))})
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if id != 4 {
		t.Errorf("id after delete = %d, want 4", id)
	}
}

// TestGet_IDReflectsRow tests that stored documents report their row id
func TestGet_IDReflectsRow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	id, err := db.Add(ctx, schema.Customers, schema.Customer{Name: "A", Phone: "1"})
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	c, err := db.Customer(ctx, id)
	if err != nil {
		t.Fatalf("Customer() failed: %v", err)
	}
	if c.ID != id || c.Name != "A" {
		t.Errorf("Customer() = %+v", c)
	}
}

// TestGet_NotFound tests the absent-record error
func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Product(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Product(99) error = %v, want ErrNotFound", err)
	}
}

// TestUpdate_ReplacesFullRecord tests full-record replacement and put-at-id
func TestUpdate_ReplacesFullRecord(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	id, _ := db.Add(ctx, schema.Customers, schema.Customer{Name: "A", Phone: "1", Email: "a@example.com"})
	if err := db.Update(ctx, schema.Customers, id, schema.Customer{Name: "B", Phone: "2"}); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	c, err := db.Customer(ctx, id)
	if err != nil {
		t.Fatalf("Customer() failed: %v", err)
	}
	if c.Name != "B" || c.Email != "" {
		t.Errorf("Update() did not replace the record: %+v", c)
	}

	if err := db.Update(ctx, schema.Customers, 10, schema.Customer{Name: "C", Phone: "3"}); err != nil {
		t.Fatalf("Update() at new id failed: %v", err)
	}
	next, _ := db.Add(ctx, schema.Customers, schema.Customer{Name: "D", Phone: "4"})
	if next != 11 {
		t.Errorf("Add() after put at 10 = %d, want 11", next)
	}
}

// TestSettingsCollection_Rejected tests that keyed settings refuse id operations
func TestSettingsCollection_Rejected(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Add(context.Background(), schema.Settings, schema.Setting{Key: "k", Value: "v"})
	var se *schema.StoreError
	if !errors.As(err, &se) {
		t.Errorf("Add(settings) error = %v, want StoreError", err)
	}
}

// TestSearch tests case-insensitive substring search over indexes
func TestSearch(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for _, c := range []schema.Customer{
		{Name: "Asha Traders", Phone: "98450"},
		{Name: "Ravi Stores", Phone: "98111"},
		{Name: "asha_home", Phone: "77777"},
	} {
		if _, err := db.Add(ctx, schema.Customers, c); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	tests := []struct {
		index string
		query string
		want  int
	}{
		{"name", "ASHA", 2},
		{"name", "stores", 1},
		{"name", "_", 1},
		{"phone", "98", 2},
		{"name", "", 3},
	}
	for _, tt := range tests {
		got, err := db.SearchCustomers(ctx, tt.index, tt.query)
		if err != nil {
			t.Fatalf("Search(%s, %q) failed: %v", tt.index, tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%s, %q) = %d results, want %d", tt.index, tt.query, len(got), tt.want)
		}
	}

	_, err := db.Search(ctx, schema.Customers, "address", "x")
	var se *schema.StoreError
	if !errors.As(err, &se) {
		t.Errorf("Search on unindexed field error = %v, want StoreError", err)
	}
}

// TestSearchInvoices tests search by invoice number or customer name
func TestSearchInvoices(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	asha, _ := db.Add(ctx, schema.Customers, schema.Customer{Name: "Asha Traders", Phone: "1"})
	ravi, _ := db.Add(ctx, schema.Customers, schema.Customer{Name: "Ravi Stores", Phone: "2"})
	for i, customerID := range []int64{asha, ravi, ravi, 99} {
		inv := scenarioInvoice(customerID)
		inv.InvoiceNumber = int64(101 + i*10)
		if _, err := db.Add(ctx, schema.Invoices, inv); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	tests := []struct {
		query string
		want  []int64
	}{
		{"111", []int64{111}},
		{"1", []int64{101, 111, 121, 131}},
		{"ravi", []int64{111, 121}},
		{"TRADERS", []int64{101}},
		{"nobody", nil},
	}
	for _, tt := range tests {
		got, err := db.SearchInvoices(ctx, tt.query)
		if err != nil {
			t.Fatalf("SearchInvoices(%q) failed: %v", tt.query, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("SearchInvoices(%q) = %d results, want %d", tt.query, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].InvoiceNumber != tt.want[i] {
				t.Errorf("SearchInvoices(%q)[%d] = #%d, want #%d", tt.query, i, got[i].InvoiceNumber, tt.want[i])
			}
		}
	}
}

// TestSearchExpenses tests search by category or description
func TestSearchExpenses(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for _, e := range []schema.Expense{
		{Date: "2024-01-01", Category: "Rent", Description: "January", Amount: schema.Money(dec("500"))},
		{Date: "2024-01-02", Category: "Transport", Description: "Van rent for delivery", Amount: schema.Money(dec("80"))},
		{Date: "2024-01-03", Category: "Supplies", Amount: schema.Money(dec("20"))},
	} {
		if _, err := db.Add(ctx, schema.Expenses, e); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"rent", 2},
		{"SUPPLIES", 1},
		{"delivery", 1},
		{"", 3},
		{"salary", 0},
	}
	for _, tt := range tests {
		got, err := db.SearchExpenses(ctx, tt.query)
		if err != nil {
			t.Fatalf("SearchExpenses(%q) failed: %v", tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("SearchExpenses(%q) = %d results, want %d", tt.query, len(got), tt.want)
		}
	}
}

// TestSettings tests the setting accessors
func TestSettings(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	v, err := db.GetSetting(ctx, "reminder_days", "3")
	if err != nil || v != "3" {
		t.Errorf("GetSetting() default = %q, %v", v, err)
	}

	if err := db.SetSetting(ctx, "reminder_days", "5"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	if err := db.SetSetting(ctx, "business_name", "Shop"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	if v, _ := db.GetSetting(ctx, "reminder_days", "3"); v != "5" {
		t.Errorf("GetSetting() = %q, want 5", v)
	}

	all, err := db.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() failed: %v", err)
	}
	if len(all) != 2 || all[0].Key != "business_name" {
		t.Errorf("Settings() = %+v, want ascending by key", all)
	}

	if err := db.SetSetting(ctx, "", "x"); !schema.IsValidation(err) {
		t.Errorf("SetSetting with empty key error = %v, want ValidationError", err)
	}

	err = db.SetSetting(ctx, "business_name", "")
	var ve *schema.ValidationError
	if !errors.As(err, &ve) || ve.Field != "value" || ve.Rule != "required" {
		t.Errorf("SetSetting with empty value error = %v, want value/required", err)
	}
	if v, _ := db.GetSetting(ctx, "business_name", ""); v != "Shop" {
		t.Errorf("rejected SetSetting changed the value to %q", v)
	}

	p, err := db.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	for _, s := range p.Settings {
		if err := s.Validate(); err != nil {
			t.Errorf("exported setting %q would be rejected by the server: %v", s.Key, err)
		}
	}
}

// TestSeedSettings tests that seeding keeps existing values
func TestSeedSettings(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	if err := db.SetSetting(ctx, schema.SettingBusinessName, "Mine"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	if err := db.SeedSettings(ctx, schema.DefaultSettings()); err != nil {
		t.Fatalf("SeedSettings() failed: %v", err)
	}
	if v, _ := db.GetSetting(ctx, schema.SettingBusinessName, ""); v != "Mine" {
		t.Errorf("business_name = %q, want Mine", v)
	}
	if v, _ := db.GetSetting(ctx, schema.SettingReminderDays, ""); v != "3" {
		t.Errorf("reminder_days = %q, want 3", v)
	}
}

// TestInvoiceUpsert_Scenario tests the customer + invoice creation scenario
func TestInvoiceUpsert_Scenario(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	var custID, invID int64
	err := db.WithTx(ctx, func(tx *Tx) error {
		var err error
		if custID, err = upsert.Customer(ctx, tx, upsert.Create(schema.Customer{Name: "A", Phone: "1"})); err != nil {
			return err
		}
		invID, err = upsert.Invoice(ctx, tx, upsert.Create(scenarioInvoice(custID)))
		return err
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if custID != 1 {
		t.Errorf("customer id = %d, want 1", custID)
	}

	invoices, err := db.Invoices(ctx)
	if err != nil {
		t.Fatalf("Invoices() failed: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("Invoices() = %d, want 1", len(invoices))
	}
	if invoices[0].ID != invID || len(invoices[0].Items) != 1 {
		t.Errorf("invoice = %+v", invoices[0])
	}
}

// TestInvoiceUpsert_InconsistentTotalsStoredAsIs tests that totals are never recomputed
func TestInvoiceUpsert_InconsistentTotalsStoredAsIs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	inv := scenarioInvoice(1)
	inv.Total = schema.Money(dec("500"))
	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := upsert.Customer(ctx, tx, upsert.Create(schema.Customer{Name: "A", Phone: "1"})); err != nil {
			return err
		}
		_, err := upsert.Invoice(ctx, tx, upsert.Create(inv))
		return err
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := db.Invoice(ctx, 1)
	if err != nil {
		t.Fatalf("Invoice() failed: %v", err)
	}
	if !got.Total.Decimal.Equal(dec("500")) {
		t.Errorf("Total = %v, want 500 as submitted", got.Total.Decimal)
	}
}

// TestInvoiceUpsert_SmallerItemList tests that no stale items survive a replace
func TestInvoiceUpsert_SmallerItemList(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	inv := scenarioInvoice(1)
	inv.Items = append(inv.Items,
		schema.InvoiceItem{ProductID: 2, Quantity: dec("1"), Price: dec("10"), Total: dec("10")},
		schema.InvoiceItem{ProductID: 3, Quantity: dec("1"), Price: dec("20"), Total: dec("20")},
	)
	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := upsert.Customer(ctx, tx, upsert.Create(schema.Customer{Name: "A", Phone: "1"})); err != nil {
			return err
		}
		_, err := upsert.Invoice(ctx, tx, upsert.Create(inv))
		return err
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	inv.Items = inv.Items[2:]
	err = db.WithTx(ctx, func(tx *Tx) error {
		_, err := upsert.Invoice(ctx, tx, upsert.Replace(1, inv))
		return err
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	got, _ := db.Invoice(ctx, 1)
	if len(got.Items) != 1 || got.Items[0].ProductID != 3 {
		t.Errorf("items = %+v, want only product 3", got.Items)
	}
}

// TestWithTx_RollbackOnError tests that a failed transaction leaves nothing behind
func TestWithTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := upsert.Customer(ctx, tx, upsert.Create(schema.Customer{Name: "A", Phone: "1"})); err != nil {
			return err
		}
		bad := scenarioInvoice(1)
		bad.Status = ""
		_, err := upsert.Invoice(ctx, tx, upsert.Create(bad))
		return err
	})
	if !schema.IsValidation(err) {
		t.Fatalf("WithTx() error = %v, want ValidationError", err)
	}

	if n, _ := db.Count(ctx, schema.Customers); n != 0 {
		t.Errorf("customers = %d after rollback, want 0", n)
	}
}

// TestNextInvoiceNumber_Monotonic tests the invoice counter
func TestNextInvoiceNumber_Monotonic(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for want := int64(1); want <= 2; want++ {
		n, err := db.NextInvoiceNumber(ctx)
		if err != nil {
			t.Fatalf("NextInvoiceNumber() failed: %v", err)
		}
		if n != want {
			t.Errorf("NextInvoiceNumber() = %d, want %d", n, want)
		}
	}

	// A pulled invoice with a higher number moves the counter past it.
	inv := scenarioInvoice(1)
	inv.InvoiceNumber = 40
	if _, err := db.Add(ctx, schema.Invoices, inv); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	n, _ := db.NextInvoiceNumber(ctx)
	if n != 41 {
		t.Errorf("NextInvoiceNumber() = %d, want 41", n)
	}
}

// TestExportImport_RoundTrip tests that an export imports into an empty store unchanged
func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupTestDB(t)

	err := src.WithTx(ctx, func(tx *Tx) error {
		if _, err := upsert.Customer(ctx, tx, upsert.Create(schema.Customer{Name: "A", Phone: "1"})); err != nil {
			return err
		}
		if _, err := upsert.Product(ctx, tx, upsert.Create(schema.Product{Name: "Pen", Price: schema.Money(dec("50")), Tax: dec("5")})); err != nil {
			return err
		}
		_, err := upsert.Invoice(ctx, tx, upsert.Create(scenarioInvoice(1)))
		return err
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := src.SetSetting(ctx, schema.SettingBusinessName, "Shop"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	if err := src.SetSetting(ctx, schema.SettingLastSync, "2024-01-01T00:00:00Z"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}

	p, err := src.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if p.SchemaVersion != schema.Version || p.ExportedAt == "" {
		t.Errorf("Export() version/timestamp = %q/%q", p.SchemaVersion, p.ExportedAt)
	}
	if len(p.Settings) != 1 || p.Settings[0].Key != schema.SettingBusinessName {
		t.Errorf("Export() settings = %+v, want last_sync left out", p.Settings)
	}

	dst := setupTestDB(t)
	if err := dst.SetSetting(ctx, schema.SettingLastSync, "keep-me"); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	p.Settings = append(p.Settings, schema.Setting{Key: schema.SettingLastSync, Value: "clobber"})

	sum, err := dst.Import(ctx, p)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if sum.Customers != 1 || sum.Products != 1 || sum.Invoices != 1 || sum.Settings != 1 {
		t.Errorf("Import() summary = %+v", sum)
	}

	inv, err := dst.Invoice(ctx, 1)
	if err != nil {
		t.Fatalf("Invoice(1) failed: %v", err)
	}
	if inv.CustomerID != 1 || len(inv.Items) != 1 || !inv.Items[0].Total.Equal(dec("105")) {
		t.Errorf("imported invoice = %+v", inv)
	}
	if v, _ := dst.GetSetting(ctx, schema.SettingLastSync, ""); v != "keep-me" {
		t.Errorf("last_sync = %q, import must not overwrite it", v)
	}
}

// TestImport_AtomicOnFailure tests that a failing import leaves the store untouched
func TestImport_AtomicOnFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	p := &schema.Payload{
		Customers: []schema.Customer{{ID: 1, Name: "A", Phone: "1"}},
		Expenses:  []schema.Expense{{ID: 1, Date: "2024-01-01", Category: "rent"}},
	}
	if _, err := db.Import(ctx, p); err == nil {
		t.Fatal("Import() should fail on a missing expense amount")
	}
	if n, _ := db.Count(ctx, schema.Customers); n != 0 {
		t.Errorf("customers = %d after failed import, want 0", n)
	}
}

// TestImport_NewerVersionRejected tests payload version checks
func TestImport_NewerVersionRejected(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Import(context.Background(), &schema.Payload{SchemaVersion: "v3.0.0"})
	if !errors.Is(err, schema.ErrUnsupportedVersion) {
		t.Errorf("Import() error = %v, want ErrUnsupportedVersion", err)
	}
}
