package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/ui"
	"github.com/retailbill/billsync/internal/upsert"
)

var expenseCmd = &cobra.Command{
	Use:     "expense",
	GroupID: "records",
	Short:   "Manage expenses",
}

var expenseAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Record an expense",
	Example: `  billsync expense add --category rent --amount 15000 --description "March rent" --date 2024-03-01`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		dateArg, _ := cmd.Flags().GetString("date")
		e := schema.Expense{Date: dateFlag(dateArg, time.Now())}
		e.Category, _ = cmd.Flags().GetString("category")
		e.Description, _ = cmd.Flags().GetString("description")
		if cmd.Flags().Changed("amount") {
			e.Amount = schema.Money(decimalFlag(cmd, "amount"))
		}

		var id int64
		err := db.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			id, err = upsert.Expense(ctx, tx, upsert.Create(e))
			return err
		})
		if err != nil {
			fatalf("%s", describe(err))
		}

		if jsonOutput {
			e.ID = id
			printJSON(e)
			return
		}
		fmt.Printf("%s Recorded expense %d: %s %s\n", ui.RenderPass("✓"), id, e.Category, money(e.Amount.Decimal))
	},
}

var expenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses",
	Args:  cobra.NoArgs,
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
		var from, to string
		if fromArg != "" {
			from = dateFlag(fromArg, now)
		}
		if toArg != "" {
			to = dateFlag(toArg, now)
		}

		all, err := db.Expenses(ctx)
		if err != nil {
			fatalf("%s", describe(err))
		}
		expenses := make([]schema.Expense, 0, len(all))
		for _, e := range all {
			if (from == "" || e.Date >= from) && (to == "" || e.Date <= to) {
				expenses = append(expenses, e)
			}
		}

		printExpenses(expenses)
	},
}

var expenseSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find expenses by category or description",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		expenses, err := db.SearchExpenses(ctx, args[0])
		if err != nil {
			fatalf("%s", describe(err))
		}
		printExpenses(expenses)
	},
}

func printExpenses(expenses []schema.Expense) {
	if jsonOutput {
		printJSON(expenses)
		return
	}
	if len(expenses) == 0 {
		fmt.Println(ui.RenderMuted("No expenses"))
		return
	}
	rows := make([][]string, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.Date, e.Category, e.Description, money(e.Amount.Decimal)})
	}
	fmt.Println(ui.Table([]string{"ID", "Date", "Category", "Description", "Amount"}, rows))
}

var expenseDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an expense from the local store",
	Long: `Delete an expense from the local store.

Deletes are local only: the server keeps its copy, and the next pull
brings the expense back.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		id := parseID(args[0])
		if err := db.Delete(ctx, schema.Expenses, id); err != nil {
			fatalf("%s", describe(err))
		}
		fmt.Printf("%s Deleted expense %d\n", ui.RenderPass("✓"), id)
	},
}

func init() {
	expenseAddCmd.Flags().String("date", "", "Expense date (default: today)")
	expenseAddCmd.Flags().String("category", "", "Category (required)")
	expenseAddCmd.Flags().String("description", "", "Description")
	expenseAddCmd.Flags().String("amount", "", "Amount (required)")

	expenseListCmd.Flags().String("from", "", "First date to include")
	expenseListCmd.Flags().String("to", "", "Last date to include")

	expenseCmd.AddCommand(expenseAddCmd)
	expenseCmd.AddCommand(expenseListCmd)
	expenseCmd.AddCommand(expenseSearchCmd)
	expenseCmd.AddCommand(expenseDeleteCmd)
	rootCmd.AddCommand(expenseCmd)
}
