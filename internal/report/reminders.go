package report

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailbill/billsync/internal/schema"
)

// MissingCustomer stands in for the name of a deleted customer.
const MissingCustomer = "N/A"

// Reminder is an open invoice that is due or overdue.
type Reminder struct {
	Invoice      schema.Invoice  `json:"invoice"`
	CustomerName string          `json:"customer_name"`
	Phone        string          `json:"phone,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	// Days past the due date; negative while the due date is ahead.
	DaysOverdue int `json:"days_overdue"`
}

// Reminders lists open invoices due on or before today, most overdue first.
func Reminders(ctx context.Context, src Source, today time.Time) ([]Reminder, error) {
	return dueInvoices(ctx, src, today, func(days int) bool { return days >= 0 })
}

// UpcomingDue lists open invoices due within the next days days, today
// included, soonest first.
func UpcomingDue(ctx context.Context, src Source, today time.Time, days int) ([]Reminder, error) {
	return dueInvoices(ctx, src, today, func(overdue int) bool { return overdue <= 0 && -overdue <= days })
}

func dueInvoices(ctx context.Context, src Source, today time.Time, keep func(daysOverdue int) bool) ([]Reminder, error) {
	invoices, err := src.Invoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	customers, err := src.Customers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	byID := make(map[int64]schema.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	day, _ := time.Parse(DateLayout, today.Format(DateLayout))
	out := []Reminder{}
	for _, inv := range invoices {
		if inv.IsPaid() || inv.DueDate == "" {
			continue
		}
		due, err := time.Parse(DateLayout, inv.DueDate)
		if err != nil {
			continue
		}
		overdue := int(day.Sub(due).Hours() / 24)
		if !keep(overdue) {
			continue
		}

		r := Reminder{Invoice: inv, CustomerName: MissingCustomer, Balance: inv.Balance(), DaysOverdue: overdue}
		if c, ok := byID[inv.CustomerID]; ok {
			r.CustomerName, r.Phone = c.Name, c.Phone
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysOverdue > out[j].DaysOverdue })
	return out, nil
}

// ReminderDays parses the reminder_days setting, falling back to 3.
func ReminderDays(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 3
	}
	return n
}

// ReminderMessage fills a reminder template. An empty template uses
// schema.DefaultReminderTemplate.
func ReminderMessage(template string, r Reminder, businessName string) string {
	if template == "" {
		template = schema.DefaultReminderTemplate
	}
	return strings.NewReplacer(
		"{customer_name}", r.CustomerName,
		"{amount}", r.Balance.StringFixed(2),
		"{invoice_number}", strconv.FormatInt(r.Invoice.InvoiceNumber, 10),
		"{due_date}", r.Invoice.DueDate,
		"{business_name}", businessName,
	).Replace(template)
}

// WhatsAppURL is a click-to-chat link carrying message to phone.
func WhatsAppURL(phone, message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?" + url.Values{"text": {message}}.Encode()
}
