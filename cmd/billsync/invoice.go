package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/report"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/ui"
	"github.com/retailbill/billsync/internal/upsert"
)

var invoiceCmd = &cobra.Command{
	Use:     "invoice",
	GroupID: "records",
	Short:   "Manage invoices",
}

// itemSpec is one --item argument: product:quantity[:price].
type itemSpec struct {
	productID int64
	quantity  decimal.Decimal
	price     decimal.Decimal
	hasPrice  bool
}

func parseItem(s string) (itemSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return itemSpec{}, fmt.Errorf("invalid item %q: want product:quantity[:price]", s)
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return itemSpec{}, fmt.Errorf("invalid item %q: bad product id", s)
	}
	qty, err := decimal.NewFromString(parts[1])
	if err != nil || !qty.IsPositive() {
		return itemSpec{}, fmt.Errorf("invalid item %q: quantity must be a positive number", s)
	}
	spec := itemSpec{productID: id, quantity: qty}
	if len(parts) == 3 {
		price, err := decimal.NewFromString(parts[2])
		if err != nil || price.IsNegative() {
			return itemSpec{}, fmt.Errorf("invalid item %q: price must be a non-negative number", s)
		}
		spec.price, spec.hasPrice = price, true
	}
	return spec, nil
}

var invoiceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an invoice",
	Long: `Create an invoice for a customer.

Each --item is product:quantity[:price]. The price defaults to the product's
current price and each line carries the product's tax percentage. Totals are
computed from the items and the status follows the amount paid.`,
	Example: `  billsync invoice add --customer 1 --item 3:2 --item 5:1:99.50
  billsync invoice add --customer 1 --item 3:10 --paid 200 --due "in 2 weeks"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		now := time.Now()
		customerID, _ := cmd.Flags().GetInt64("customer")
		rawItems, _ := cmd.Flags().GetStringArray("item")
		dateArg, _ := cmd.Flags().GetString("date")
		dueArg, _ := cmd.Flags().GetString("due")
		notes, _ := cmd.Flags().GetString("notes")
		paid := decimalFlag(cmd, "paid")

		if len(rawItems) == 0 {
			fatalf("at least one --item is required")
		}
		specs := make([]itemSpec, 0, len(rawItems))
		for _, raw := range rawItems {
			spec, err := parseItem(raw)
			if err != nil {
				fatalf("%v", err)
			}
			specs = append(specs, spec)
		}

		inv := schema.Invoice{
			CustomerID: customerID,
			Date:       dateFlag(dateArg, now),
			AmountPaid: paid,
			Notes:      notes,
		}
		if dueArg != "" {
			inv.DueDate = dateFlag(dueArg, now)
		}

		for _, spec := range specs {
			p, err := db.Product(ctx, spec.productID)
			if err != nil {
				fatalf("product %d: %s", spec.productID, describe(err))
			}
			price := p.Price.Decimal
			if spec.hasPrice {
				price = spec.price
			}
			inv.Items = append(inv.Items, schema.NewItem(p.ID, spec.quantity, price, p.Tax))
		}
		inv.ApplyTotals()
		inv.Status = schema.PaymentStatus(inv.Total.Decimal, inv.AmountPaid)

		var id int64
		err := db.WithTx(ctx, func(tx *store.Tx) error {
			number, err := tx.NextInvoiceNumber(ctx)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = number
			id, err = upsert.Invoice(ctx, tx, upsert.Create(inv))
			return err
		})
		if err != nil {
			fatalf("%s", describe(err))
		}

		if jsonOutput {
			inv.ID = id
			printJSON(inv)
			return
		}
		fmt.Printf("%s Created invoice #%d (id %d): total %s, %s\n",
			ui.RenderPass("✓"), inv.InvoiceNumber, id, money(inv.Total.Decimal), ui.RenderState(inv.Status))
	},
}

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		status, _ := cmd.Flags().GetString("status")
		invoices, err := db.Invoices(ctx)
		if err != nil {
			fatalf("%s", describe(err))
		}
		if status != "" {
			filtered := invoices[:0]
			for _, inv := range invoices {
				if inv.Status == status {
					filtered = append(filtered, inv)
				}
			}
			invoices = filtered
		}
		printInvoices(ctx, db, invoices)
	},
}

var invoiceSearchCmd = &cobra.Command{
	Use:     "search <query>",
	Short:   "Find invoices by number or customer name",
	Example: `  billsync invoice search 104
  billsync invoice search asha`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		invoices, err := db.SearchInvoices(ctx, args[0])
		if err != nil {
			fatalf("%s", describe(err))
		}
		printInvoices(ctx, db, invoices)
	},
}

func printInvoices(ctx context.Context, db *store.DB, invoices []schema.Invoice) {
	if jsonOutput {
		printJSON(invoices)
		return
	}
	if len(invoices) == 0 {
		fmt.Println(ui.RenderMuted("No invoices"))
		return
	}

	names := customerNames(ctx, db)
	rows := make([][]string, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		rows = append(rows, []string{
			strconv.FormatInt(inv.InvoiceNumber, 10), inv.Date, names(inv.CustomerID),
			money(inv.Total.Decimal), money(inv.Balance()), ui.RenderState(inv.Status),
		})
	}
	fmt.Println(ui.Table([]string{"#", "Date", "Customer", "Total", "Balance", "Status"}, rows))
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an invoice with its items",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		inv, err := db.Invoice(ctx, parseID(args[0]))
		if err != nil {
			fatalf("%s", describe(err))
		}
		if jsonOutput {
			printJSON(inv)
			return
		}

		products := map[int64]string{}
		if all, err := db.Products(ctx); err == nil {
			for _, p := range all {
				products[p.ID] = p.Name
			}
		}

		fmt.Printf("\n%s #%d\n\n", ui.RenderAccent("Invoice"), inv.InvoiceNumber)
		fmt.Printf("Customer: %s\n", customerNames(ctx, db)(inv.CustomerID))
		fmt.Printf("Date:     %s\n", inv.Date)
		if inv.DueDate != "" {
			fmt.Printf("Due:      %s\n", inv.DueDate)
		}
		fmt.Printf("Status:   %s\n\n", ui.RenderState(inv.Status))

		rows := make([][]string, 0, len(inv.Items))
		for _, it := range inv.Items {
			name := products[it.ProductID]
			if name == "" {
				name = fmt.Sprintf("product %d", it.ProductID)
			}
			rows = append(rows, []string{name, it.Quantity.String(), money(it.Price), it.Tax.String() + "%", money(it.Total)})
		}
		fmt.Println(ui.Table([]string{"Item", "Qty", "Price", "Tax", "Total"}, rows))

		fmt.Printf("Subtotal: %s\n", money(inv.Subtotal.Decimal))
		fmt.Printf("Tax:      %s\n", money(inv.Tax.Decimal))
		fmt.Printf("Total:    %s\n", money(inv.Total.Decimal))
		fmt.Printf("Paid:     %s\n", money(inv.AmountPaid))
		fmt.Printf("Balance:  %s\n", money(inv.Balance()))
		if inv.Notes != "" {
			fmt.Printf("Notes:    %s\n", inv.Notes)
		}
		fmt.Println()
	},
}

// customerNames returns a lookup from customer id to name.
func customerNames(ctx context.Context, db *store.DB) func(int64) string {
	names := map[int64]string{}
	if customers, err := db.Customers(ctx); err == nil {
		for _, c := range customers {
			names[c.ID] = c.Name
		}
	}
	return func(id int64) string {
		if name, ok := names[id]; ok {
			return name
		}
		return report.MissingCustomer
	}
}

func init() {
	invoiceAddCmd.Flags().Int64("customer", 0, "Customer id (required)")
	invoiceAddCmd.Flags().StringArray("item", nil, "Line item as product:quantity[:price] (repeatable)")
	invoiceAddCmd.Flags().String("date", "", "Invoice date (default: today)")
	invoiceAddCmd.Flags().String("due", "", "Due date")
	invoiceAddCmd.Flags().String("paid", "0", "Amount paid")
	invoiceAddCmd.Flags().String("notes", "", "Notes")
	_ = invoiceAddCmd.MarkFlagRequired("customer")

	invoiceListCmd.Flags().String("status", "", "Only invoices with this status (unpaid, partial, paid)")

	invoiceCmd.AddCommand(invoiceAddCmd)
	invoiceCmd.AddCommand(invoiceListCmd)
	invoiceCmd.AddCommand(invoiceSearchCmd)
	invoiceCmd.AddCommand(invoiceShowCmd)
	rootCmd.AddCommand(invoiceCmd)
}
