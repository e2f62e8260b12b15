package snapshot

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/retailbill/billsync/internal/schema"
)

func samplePayload() *schema.Payload {
	d := decimal.RequireFromString
	return &schema.Payload{
		SchemaVersion: schema.Version,
		Customers:     []schema.Customer{{ID: 1, Name: "A", Phone: "1", CreatedAt: "2024-01-01T09:00:00Z"}},
		Products:      []schema.Product{{ID: 1, Name: "Pen", Price: schema.Money(d("12.50")), Stock: 3, Tax: d("5")}},
		Invoices: []schema.Invoice{{
			ID: 1, InvoiceNumber: 1, CustomerID: 1, Date: "2024-01-01",
			Subtotal: schema.Money(d("25")), Tax: schema.Money(d("1.25")), Total: schema.Money(d("26.25")),
			Status: schema.StatusUnpaid, AmountPaid: decimal.Zero,
			Items: []schema.InvoiceItem{{ProductID: 1, Quantity: d("2"), Price: d("12.50"), Tax: d("5"), Total: d("26.25")}},
		}},
		Expenses: []schema.Expense{},
		Settings: []schema.Setting{{Key: "business_name", Value: "Shop"}},
	}
}

func encode(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return string(data)
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"backup.json", JSON},
		{"backup.yaml", YAML},
		{"backup.YML", YAML},
		{"backup.jsonl", JSONL},
		{"backup.ndjson", JSONL},
		{"backup", JSON},
		{"dir.yaml/backup.txt", JSON},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("YML"); err != nil || f != YAML {
		t.Errorf("ParseFormat(YML) = %s, %v", f, err)
	}
	if f, err := ParseFormat("ndjson"); err != nil || f != JSONL {
		t.Errorf("ParseFormat(ndjson) = %s, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestWriteRead(t *testing.T) {
	for _, format := range []Format{JSON, YAML, JSONL} {
		t.Run(string(format), func(t *testing.T) {
			in := samplePayload()
			var buf bytes.Buffer
			if err := Write(&buf, format, in); err != nil {
				t.Fatalf("Write() failed: %v", err)
			}
			out, err := Read(&buf, format)
			if err != nil {
				t.Fatalf("Read() failed: %v", err)
			}
			if got, want := encode(t, out), encode(t, in); got != want {
				t.Errorf("round trip:\n got %s\nwant %s", got, want)
			}
		})
	}
}

func TestWrite_YAMLKeepsMoneyQuoted(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, YAML, samplePayload()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if !strings.Contains(buf.String(), `price: "12.5"`) {
		t.Errorf("price should stay a string:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "invoice_number: 1") {
		t.Errorf("yaml should use transport field names:\n%s", buf.String())
	}
}

func TestWrite_JSONLOneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, JSONL, samplePayload()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// header, customer, product, invoice, setting
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"schema_version":"`+schema.Version+`"`) {
		t.Errorf("first line should be the header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[3], `{"collection":"invoices","record":{"id":1,`) {
		t.Errorf("unexpected invoice line: %s", lines[3])
	}
}

func TestRead_JSONLInvalid(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"broken json", "{\"schema_version\":\"v1.0.0\"}\n{\"collection\":", "line 2"},
		{"unknown collection", "{\"collection\":\"orders\",\"record\":{}}\n", "unknown collection"},
		{"missing record", "{\"collection\":\"customers\"}\n", "missing record"},
		{"bad record", "{\"collection\":\"products\",\"record\":{\"price\":\"abc\"}}\n", "invalid products record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), JSONL)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestRead_Invalid(t *testing.T) {
	if _, err := Read(strings.NewReader("{"), JSON); err == nil {
		t.Error("Read() should reject truncated json")
	}
	if _, err := Read(strings.NewReader("customers: [1, 2"), YAML); err == nil {
		t.Error("Read() should reject broken yaml")
	}
	if _, err := Read(strings.NewReader("{}"), Format("xml")); err == nil {
		t.Error("Read() should reject unknown formats")
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "backup.yaml")
	in := samplePayload()
	if err := WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}
	out, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if len(out.Invoices) != 1 || len(out.Invoices[0].Items) != 1 {
		t.Errorf("invoices = %+v", out.Invoices)
	}
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	if p.Business.Name != "Our Store" || p.Reminders.Days != 3 {
		t.Errorf("DefaultProfile() = %+v", p)
	}
	if p.Reminders.Template != schema.DefaultReminderTemplate {
		t.Errorf("template = %q", p.Reminders.Template)
	}
	if n := len(p.Settings()); n != 7 {
		t.Errorf("Settings() returned %d rows, want 7", n)
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	content := `
[business]
name = "Corner Shop"
gst_number = "29ABCDE1234F1Z5"

[reminders]
days = 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile() failed: %v", err)
	}
	if p.Business.Name != "Corner Shop" || p.Business.GSTNumber != "29ABCDE1234F1Z5" {
		t.Errorf("business = %+v", p.Business)
	}
	if p.Business.Phone != "+91 98765 43210" {
		t.Errorf("missing keys should keep defaults, phone = %q", p.Business.Phone)
	}

	settings := map[string]string{}
	for _, s := range p.Settings() {
		settings[s.Key] = s.Value
	}
	if settings[schema.SettingReminderDays] != "5" {
		t.Errorf("reminder_days = %q, want 5", settings[schema.SettingReminderDays])
	}
}

func TestLoadProfile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte("[business]\nnmae = \"typo\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil || !strings.Contains(err.Error(), "business.nmae") {
		t.Errorf("LoadProfile() error = %v, want unknown key", err)
	}
}
