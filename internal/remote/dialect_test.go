package remote

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/retailbill/billsync/internal/schema"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"sqlite", SQLite, false},
		{"SQLite3", SQLite, false},
		{" libsql ", LibSQL, false},
		{"mysql", MySQL, false},
		{"postgres", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDialect(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUpsertSQL(t *testing.T) {
	got := SQLite.upsertSQL(expensesTable)
	if !strings.Contains(got, "ON CONFLICT(id) DO UPDATE SET date = excluded.date") {
		t.Errorf("sqlite upsert = %s", got)
	}
	if strings.Count(got, "?") != len(expensesTable.cols)+1 {
		t.Errorf("sqlite upsert has wrong placeholder count: %s", got)
	}

	got = MySQL.upsertSQL(expensesTable)
	if !strings.Contains(got, "ON DUPLICATE KEY UPDATE date = VALUES(date)") {
		t.Errorf("mysql upsert = %s", got)
	}
	if strings.Contains(got, "excluded") {
		t.Errorf("mysql upsert should not use excluded: %s", got)
	}
}

func TestDataSource_MySQLCharset(t *testing.T) {
	got, err := MySQL.dataSource("user:pass@tcp(localhost:3306)/billing")
	if err != nil {
		t.Fatalf("dataSource() failed: %v", err)
	}
	if !strings.Contains(got, "charset=utf8mb4") {
		t.Errorf("dataSource() = %s, want utf8mb4 charset", got)
	}

	got, err = MySQL.dataSource("user:pass@tcp(localhost:3306)/billing?charset=latin1")
	if err != nil {
		t.Fatalf("dataSource() failed: %v", err)
	}
	if strings.Contains(got, "utf8mb4") {
		t.Errorf("dataSource() overrode explicit charset: %s", got)
	}
}

func TestDataSource_SQLiteFile(t *testing.T) {
	dir := t.TempDir()
	got, err := SQLite.dataSource(dir + "/nested/remote.db")
	if err != nil {
		t.Fatalf("dataSource() failed: %v", err)
	}
	if !strings.HasPrefix(got, "file:") || !strings.Contains(got, "foreign_keys(1)") {
		t.Errorf("dataSource() = %s", got)
	}
}

// TestMySQLDecimalScale tests that DECIMAL(15,4) column text reads back as
// the same JSON money string that was pushed
func TestMySQLDecimalScale(t *testing.T) {
	tests := []struct {
		column string
		want   string
	}{
		{"105.0000", `"105"`},
		{"12.5000", `"12.5"`},
		{"0.0000", `"0"`},
		{"19.9900", `"19.99"`},
	}
	for _, tt := range tests {
		var price decimal.NullDecimal
		if err := price.Scan([]byte(tt.column)); err != nil {
			t.Fatalf("Scan(%q) failed: %v", tt.column, err)
		}
		data, err := json.Marshal(schema.Product{Name: "Pen", Price: price})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"price":`+tt.want) {
			t.Errorf("column %s encoded as %s, want price %s", tt.column, data, tt.want)
		}
	}
}
