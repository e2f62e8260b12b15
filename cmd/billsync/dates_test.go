package main

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want string
	}{
		{"", "2024-03-13"},
		{"today", "2024-03-13"},
		{"2024-01-05", "2024-01-05"},
		{"yesterday", "2024-03-12"},
		{"tomorrow", "2024-03-14"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in, now)
			if err != nil {
				t.Fatalf("parseDate(%q) failed: %v", tt.in, err)
			}
			if s := got.Format("2006-01-02"); s != tt.want {
				t.Errorf("parseDate(%q) = %s, want %s", tt.in, s, tt.want)
			}
			if got.Hour() != 0 || got.Minute() != 0 {
				t.Errorf("parseDate(%q) kept a time of day: %v", tt.in, got)
			}
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	if _, err := parseDate("gibberish", time.Now()); err == nil {
		t.Error("parseDate() should reject text without a date")
	}
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		in       string
		id       int64
		qty      string
		price    string
		hasPrice bool
		wantErr  bool
	}{
		{"3:2", 3, "2", "", false, false},
		{"3:1.5:40", 3, "1.5", "40", true, false},
		{"3", 0, "", "", false, true},
		{"x:2", 0, "", "", false, true},
		{"3:0", 0, "", "", false, true},
		{"3:2:-1", 0, "", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec, err := parseItem(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseItem(%q) should fail", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseItem(%q) failed: %v", tt.in, err)
			}
			if spec.productID != tt.id || spec.quantity.String() != tt.qty {
				t.Errorf("parseItem(%q) = %+v", tt.in, spec)
			}
			if spec.hasPrice != tt.hasPrice || (tt.hasPrice && spec.price.String() != tt.price) {
				t.Errorf("parseItem(%q) price = %v (%v)", tt.in, spec.price, spec.hasPrice)
			}
		})
	}
}
