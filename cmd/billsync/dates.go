package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/retailbill/billsync/internal/report"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate accepts YYYY-MM-DD or a natural-language date such as
// "yesterday", "last monday" or "in 2 weeks", relative to now.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return dateOnly(now), nil
	}
	if t, err := time.ParseInLocation(report.DateLayout, s, now.Location()); err == nil {
		return t, nil
	}

	r, err := dateParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or a phrase like \"yesterday\"", s)
	}
	return dateOnly(r.Time), nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dateFlag reads a date flag; an unset flag is today.
func dateFlag(value string, now time.Time) string {
	t, err := parseDate(value, now)
	if err != nil {
		fatalf("%v", err)
	}
	return t.Format(report.DateLayout)
}
