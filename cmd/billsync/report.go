package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/report"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	GroupID: "records",
	Short:   "Sales, expense and payment reports",
}

var reportDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Today's sales, month to date and pending payments",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		dateArg, _ := cmd.Flags().GetString("date")
		today, err := parseDate(dateArg, time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		stats, err := report.Dashboard(ctx, db, today)
		if err != nil {
			fatalf("%v", err)
		}
		recent, err := report.Recent(ctx, db, 5)
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			printJSON(struct {
				report.DashboardStats
				Recent []schema.Invoice `json:"recent_invoices"`
			}{stats, recent})
			return
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent("Dashboard"), stats.Date)
		fmt.Printf("Today's sales:    %s\n", money(stats.TodaySales))
		fmt.Printf("Month to date:    %s\n", money(stats.MonthSales))
		fmt.Printf("Pending payments: %s\n", ui.RenderWarn(money(stats.PendingPayments)))
		fmt.Printf("Customers:        %d\n\n", stats.TotalCustomers)

		if len(recent) == 0 {
			return
		}
		names := customerNames(ctx, db)
		rows := make([][]string, 0, len(recent))
		for _, inv := range recent {
			rows = append(rows, []string{
				strconv.FormatInt(inv.InvoiceNumber, 10), inv.Date, names(inv.CustomerID),
				money(inv.Total.Decimal), ui.RenderState(inv.Status),
			})
		}
		fmt.Println(ui.RenderMuted("Recent invoices"))
		fmt.Println(ui.Table([]string{"#", "Date", "Customer", "Total", "Status"}, rows))
	},
}

var reportRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Sales and expenses between two dates",
	Example: `  billsync report range --from 2024-03-01 --to 2024-03-31
  billsync report range --from "last monday" --to today`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		now := time.Now()
		fromArg, _ := cmd.Flags().GetString("from")
		toArg, _ := cmd.Flags().GetString("to")
		from, err := parseDate(fromArg, now)
		if err != nil {
			fatalf("%v", err)
		}
		to, err := parseDate(toArg, now)
		if err != nil {
			fatalf("%v", err)
		}

		r, err := report.Range(ctx, db, from, to)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(r)
			return
		}

		fmt.Printf("\n%s %s to %s\n\n", ui.RenderAccent("Report"), r.From, r.To)
		fmt.Printf("Invoices:       %d\n", r.Invoices)
		fmt.Printf("Total sales:    %s\n", money(r.TotalSales))
		fmt.Printf("Collected:      %s\n", money(r.TotalPaid))
		fmt.Printf("Pending:        %s\n", money(r.TotalPending))
		fmt.Printf("Total expenses: %s\n", money(r.TotalExpenses))
		net := money(r.NetProfit)
		if r.NetProfit.IsNegative() {
			net = ui.RenderFail(net)
		} else {
			net = ui.RenderPass(net)
		}
		fmt.Printf("Net profit:     %s\n\n", net)

		if len(r.Categories) == 0 {
			fmt.Println(ui.RenderMuted("No expenses"))
			return
		}
		rows := make([][]string, 0, len(r.Categories))
		for _, c := range r.Categories {
			rows = append(rows, []string{c.Category, money(c.Amount), c.Percent.StringFixed(1) + "%"})
		}
		fmt.Println(ui.Table([]string{"Category", "Amount", "Share"}, rows))
	},
}

var reportRemindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Open invoices that are due, with reminder messages",
	Long: `List open invoices that are due or overdue, most overdue first.

With --upcoming, list invoices falling due within the reminder_days setting
instead. --whatsapp prints a click-to-chat link carrying the reminder
message built from the reminder_template setting.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		upcoming, _ := cmd.Flags().GetBool("upcoming")
		whatsapp, _ := cmd.Flags().GetBool("whatsapp")
		today := dateOnly(time.Now())

		var (
			reminders []report.Reminder
			err       error
		)
		if upcoming {
			days, _ := db.GetSetting(ctx, schema.SettingReminderDays, "3")
			reminders, err = report.UpcomingDue(ctx, db, today, report.ReminderDays(days))
		} else {
			reminders, err = report.Reminders(ctx, db, today)
		}
		if err != nil {
			fatalf("%v", err)
		}

		template, _ := db.GetSetting(ctx, schema.SettingReminderTemplate, "")
		business, _ := db.GetSetting(ctx, schema.SettingBusinessName, "Our Store")

		if jsonOutput {
			type entry struct {
				report.Reminder
				Message string `json:"message"`
				Link    string `json:"whatsapp_url,omitempty"`
			}
			out := make([]entry, 0, len(reminders))
			for _, r := range reminders {
				e := entry{Reminder: r, Message: report.ReminderMessage(template, r, business)}
				if whatsapp && r.Phone != "" {
					e.Link = report.WhatsAppURL(r.Phone, e.Message)
				}
				out = append(out, e)
			}
			printJSON(out)
			return
		}

		if len(reminders) == 0 {
			fmt.Println(ui.RenderMuted("No invoices due"))
			return
		}
		rows := make([][]string, 0, len(reminders))
		for _, r := range reminders {
			due := fmt.Sprintf("%s (%d days overdue)", r.Invoice.DueDate, r.DaysOverdue)
			switch {
			case r.DaysOverdue == 0:
				due = r.Invoice.DueDate + " (today)"
			case r.DaysOverdue < 0:
				due = fmt.Sprintf("%s (in %d days)", r.Invoice.DueDate, -r.DaysOverdue)
			default:
				due = ui.RenderFail(due)
			}
			rows = append(rows, []string{
				strconv.FormatInt(r.Invoice.InvoiceNumber, 10), r.CustomerName, r.Phone, money(r.Balance), due,
			})
		}
		fmt.Println(ui.Table([]string{"#", "Customer", "Phone", "Balance", "Due"}, rows))

		if whatsapp {
			fmt.Println()
			for _, r := range reminders {
				if r.Phone == "" {
					continue
				}
				msg := report.ReminderMessage(template, r, business)
				fmt.Printf("#%d %s\n", r.Invoice.InvoiceNumber, report.WhatsAppURL(r.Phone, msg))
			}
		}
	},
}

func init() {
	reportDashboardCmd.Flags().String("date", "", "Report as of this date (default: today)")

	reportRangeCmd.Flags().String("from", "", "First date (required)")
	reportRangeCmd.Flags().String("to", "", "Last date (default: today)")
	_ = reportRangeCmd.MarkFlagRequired("from")

	reportRemindersCmd.Flags().Bool("upcoming", false, "List invoices falling due soon instead of overdue ones")
	reportRemindersCmd.Flags().Bool("whatsapp", false, "Print WhatsApp reminder links")

	reportCmd.AddCommand(reportDashboardCmd)
	reportCmd.AddCommand(reportRangeCmd)
	reportCmd.AddCommand(reportRemindersCmd)
	rootCmd.AddCommand(reportCmd)
}
