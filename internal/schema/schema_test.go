package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func validInvoice() Invoice {
	return Invoice{
		InvoiceNumber: 1,
		CustomerID:    1,
		Date:          "2024-01-01",
		Subtotal:      Money(dec("100")),
		Tax:           Money(dec("5")),
		Total:         Money(dec("105")),
		Status:        StatusUnpaid,
		Items: []InvoiceItem{
			{ProductID: 1, Quantity: dec("2"), Price: dec("50"), Tax: dec("5"), Total: dec("105")},
		},
	}
}

// TestValidate_RequiredFields tests that each missing required field is named
func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		record interface{ Validate() error }
		field  string
	}{
		{"customer name", &Customer{Phone: "1"}, "name"},
		{"customer phone", &Customer{Name: "A"}, "phone"},
		{"product name", &Product{Price: Money(dec("1"))}, "name"},
		{"product price", &Product{Name: "Pen"}, "price"},
		{"expense date", &Expense{Category: "rent", Amount: Money(dec("10"))}, "date"},
		{"expense category", &Expense{Date: "2024-01-01", Amount: Money(dec("10"))}, "category"},
		{"expense amount", &Expense{Date: "2024-01-01", Category: "rent"}, "amount"},
		{"setting key", &Setting{Value: "x"}, "key"},
		{"setting value", &Setting{Key: "x"}, "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
			if ve.Rule != "required" {
				t.Errorf("Rule = %q, want required", ve.Rule)
			}
		})
	}
}

// TestValidate_InvoiceRequired tests every required invoice header field
func TestValidate_InvoiceRequired(t *testing.T) {
	tests := []struct {
		field string
		clear func(*Invoice)
	}{
		{"invoice_number", func(inv *Invoice) { inv.InvoiceNumber = 0 }},
		{"customer_id", func(inv *Invoice) { inv.CustomerID = 0 }},
		{"date", func(inv *Invoice) { inv.Date = "" }},
		{"subtotal", func(inv *Invoice) { inv.Subtotal = decimal.NullDecimal{} }},
		{"tax", func(inv *Invoice) { inv.Tax = decimal.NullDecimal{} }},
		{"total", func(inv *Invoice) { inv.Total = decimal.NullDecimal{} }},
		{"status", func(inv *Invoice) { inv.Status = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			inv := validInvoice()
			tt.clear(&inv)
			err := inv.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

// TestValidate_ZeroIsPresent tests that zero money values satisfy required
func TestValidate_ZeroIsPresent(t *testing.T) {
	p := Product{Name: "Free sample", Price: Money(decimal.Zero)}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() with zero price failed: %v", err)
	}

	inv := validInvoice()
	inv.Subtotal, inv.Tax, inv.Total = Money(decimal.Zero), Money(decimal.Zero), Money(decimal.Zero)
	inv.Items = nil
	if err := inv.Validate(); err != nil {
		t.Errorf("Validate() with zero totals failed: %v", err)
	}
}

// TestValidate_Rules tests format and range rules
func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		record interface{ Validate() error }
		field  string
		rule   string
	}{
		{"negative price", &Product{Name: "Pen", Price: Money(dec("-1"))}, "price", "nonneg"},
		{"negative stock", &Product{Name: "Pen", Price: Money(dec("1")), Stock: -1}, "stock", "gte"},
		{"tax over 100", &Product{Name: "Pen", Price: Money(dec("1")), Tax: dec("101")}, "tax", "percent"},
		{"bad date", &Expense{Date: "01/02/2024", Category: "rent", Amount: Money(dec("1"))}, "date", "datetime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field || ve.Rule != tt.rule {
				t.Errorf("got %s/%s, want %s/%s", ve.Field, ve.Rule, tt.field, tt.rule)
			}
		})
	}
}

// TestValidate_EmailIsFreeText tests that records accept any email text
func TestValidate_EmailIsFreeText(t *testing.T) {
	for _, email := range []string{"", "none", "asha at shop", "asha@example.com"} {
		c := Customer{Name: "A", Phone: "1", Email: email}
		if err := c.Validate(); err != nil {
			t.Errorf("Validate() with email %q failed: %v", email, err)
		}
	}
}

// TestCheckEmail tests the entry-form email format check
func TestCheckEmail(t *testing.T) {
	for _, ok := range []string{"", "asha@example.com"} {
		if err := CheckEmail(ok); err != nil {
			t.Errorf("CheckEmail(%q) = %v", ok, err)
		}
	}
	err := CheckEmail("nope")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "email" || ve.Rule != "email" {
		t.Errorf("CheckEmail(nope) = %v, want email/email", err)
	}
}

// TestValidate_InvoiceStatusAndItems tests status values and item paths
func TestValidate_InvoiceStatusAndItems(t *testing.T) {
	inv := validInvoice()
	inv.Status = "void"
	err := inv.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" || ve.Rule != "oneof" {
		t.Errorf("Validate() status error = %v", err)
	}

	inv = validInvoice()
	inv.Items = append(inv.Items, InvoiceItem{ProductID: 2, Quantity: dec("-1")})
	err = inv.Validate()
	if !errors.As(err, &ve) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if ve.Field != "items[1].quantity" {
		t.Errorf("Field = %q, want items[1].quantity", ve.Field)
	}
}

// TestValidate_InconsistentTotalsAccepted tests that validation never checks arithmetic
func TestValidate_InconsistentTotalsAccepted(t *testing.T) {
	inv := validInvoice()
	inv.Total = Money(dec("999"))
	if err := inv.Validate(); err != nil {
		t.Errorf("Validate() rejected inconsistent totals: %v", err)
	}
}

// TestJSON_DecimalShapes tests that decimals accept numbers and strings
func TestJSON_DecimalShapes(t *testing.T) {
	data := `{"name":"Pen","price":12.5,"stock":3,"tax":"18"}`
	var p Product
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !p.Price.Valid || !p.Price.Decimal.Equal(dec("12.5")) {
		t.Errorf("Price = %v, want 12.5", p.Price)
	}
	if !p.Tax.Equal(dec("18")) {
		t.Errorf("Tax = %v, want 18", p.Tax)
	}

	var missing Product
	if err := json.Unmarshal([]byte(`{"name":"Pen"}`), &missing); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if missing.Price.Valid {
		t.Error("absent price should decode as null")
	}
	if !missing.Tax.IsZero() {
		t.Errorf("absent tax = %v, want 0", missing.Tax)
	}
}

// TestInvoiceTotals tests line and invoice arithmetic
func TestInvoiceTotals(t *testing.T) {
	it := NewItem(1, dec("2"), dec("50"), dec("5"))
	if !it.Total.Equal(dec("105")) {
		t.Errorf("item Total = %v, want 105", it.Total)
	}

	inv := Invoice{Items: []InvoiceItem{it, NewItem(2, dec("3"), dec("10"), dec("0"))}}
	inv.ApplyTotals()
	if !inv.Subtotal.Decimal.Equal(dec("130")) {
		t.Errorf("Subtotal = %v, want 130", inv.Subtotal.Decimal)
	}
	if !inv.Tax.Decimal.Equal(dec("5")) {
		t.Errorf("Tax = %v, want 5", inv.Tax.Decimal)
	}
	if !inv.Total.Decimal.Equal(dec("135")) {
		t.Errorf("Total = %v, want 135", inv.Total.Decimal)
	}

	inv.AmountPaid = dec("35")
	if !inv.Balance().Equal(dec("100")) {
		t.Errorf("Balance = %v, want 100", inv.Balance())
	}
}

// TestPaymentStatus tests status derivation from payments
func TestPaymentStatus(t *testing.T) {
	tests := []struct {
		total, paid string
		want        string
	}{
		{"100", "0", StatusUnpaid},
		{"100", "40", StatusPartial},
		{"100", "100", StatusPaid},
		{"100", "120", StatusPaid},
	}
	for _, tt := range tests {
		if got := PaymentStatus(dec(tt.total), dec(tt.paid)); got != tt.want {
			t.Errorf("PaymentStatus(%s, %s) = %q, want %q", tt.total, tt.paid, got, tt.want)
		}
	}
}

// TestCheckVersion tests additive version compatibility
func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"", true},
		{Version, true},
		{"v1.4.0", true},
		{"v0.9.0", true},
		{"v2.0.0", false},
		{"1.0", false},
	}
	for _, tt := range tests {
		err := CheckVersion(tt.version)
		if (err == nil) != tt.ok {
			t.Errorf("CheckVersion(%q) = %v, want ok=%v", tt.version, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("CheckVersion(%q) error should wrap ErrUnsupportedVersion", tt.version)
		}
	}
}

// TestIsRetryable tests error classification
func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", &ValidationError{Entity: "customer", Field: "name", Rule: "required"}, false},
		{"store", &StoreError{Op: "add", Collection: Customers, Err: errors.New("disk full")}, false},
		{"network", &NetworkError{Op: "push", Err: errors.New("refused")}, true},
		{"sync", &SyncError{Message: "boom"}, true},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
