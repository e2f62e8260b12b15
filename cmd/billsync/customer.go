package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/report"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/ui"
	"github.com/retailbill/billsync/internal/upsert"
)

var customerCmd = &cobra.Command{
	Use:     "customer",
	GroupID: "records",
	Short:   "Manage customers",
}

var customerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a customer",
	Example: `  billsync customer add --name "Asha Rao" --phone "+91 98450 12345"
  billsync customer add --name Ravi --phone 9845012345 --email ravi@example.com`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		c := schema.Customer{}
		c.Name, _ = cmd.Flags().GetString("name")
		c.Phone, _ = cmd.Flags().GetString("phone")
		c.Email, _ = cmd.Flags().GetString("email")
		c.Address, _ = cmd.Flags().GetString("address")
		if err := schema.CheckEmail(c.Email); err != nil {
			fatalf("%s", describe(err))
		}

		var id int64
		err := db.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			id, err = upsert.Customer(ctx, tx, upsert.Create(c))
			return err
		})
		if err != nil {
			fatalf("%s", describe(err))
		}

		if jsonOutput {
			c.ID = id
			printJSON(c)
			return
		}
		fmt.Printf("%s Added customer %d: %s\n", ui.RenderPass("✓"), id, c.Name)
	},
}

var customerEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a customer's details",
	Long: `Change a customer's details. Fields without a flag keep their value and
the record is written back whole, so the next push replaces the server copy.`,
	Example: `  billsync customer edit 3 --phone "+91 98450 54321"`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		id := parseID(args[0])
		c, err := db.Customer(ctx, id)
		if err != nil {
			fatalf("%s", describe(err))
		}
		editCustomer(cmd, c)
		if err := schema.CheckEmail(c.Email); err != nil {
			fatalf("%s", describe(err))
		}

		err = db.WithTx(ctx, func(tx *store.Tx) error {
			_, err := upsert.Customer(ctx, tx, upsert.Replace(id, *c))
			return err
		})
		if err != nil {
			fatalf("%s", describe(err))
		}

		if jsonOutput {
			printJSON(c)
			return
		}
		fmt.Printf("%s Updated customer %d: %s\n", ui.RenderPass("✓"), id, c.Name)
	},
}

func addCustomerEditFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Customer name")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("address", "", "Postal address")
}

// editCustomer overwrites the fields of c whose flags were set.
func editCustomer(cmd *cobra.Command, c *schema.Customer) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		c.Name, _ = flags.GetString("name")
	}
	if flags.Changed("phone") {
		c.Phone, _ = flags.GetString("phone")
	}
	if flags.Changed("email") {
		c.Email, _ = flags.GetString("email")
	}
	if flags.Changed("address") {
		c.Address, _ = flags.GetString("address")
	}
}

var customerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		customers, err := db.Customers(ctx)
		if err != nil {
			fatalf("%s", describe(err))
		}
		printCustomers(customers)
	},
}

var customerSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find customers by name or phone (case-insensitive substring)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		by, _ := cmd.Flags().GetString("by")
		customers, err := db.SearchCustomers(ctx, by, args[0])
		if err != nil {
			fatalf("%s", describe(err))
		}
		printCustomers(customers)
	},
}

var customerShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a customer with purchase totals",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		id := parseID(args[0])
		c, err := db.Customer(ctx, id)
		if err != nil {
			fatalf("%s", describe(err))
		}
		stats, err := report.Customer(ctx, db, id)
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			printJSON(struct {
				Customer *schema.Customer     `json:"customer"`
				Stats    report.CustomerStats `json:"stats"`
			}{c, stats})
			return
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent("Customer"), c.Name)
		fmt.Printf("ID:       %d\n", c.ID)
		fmt.Printf("Phone:    %s\n", c.Phone)
		if c.Email != "" {
			fmt.Printf("Email:    %s\n", c.Email)
		}
		if c.Address != "" {
			fmt.Printf("Address:  %s\n", c.Address)
		}
		fmt.Printf("Invoices: %d\n", stats.Invoices)
		fmt.Printf("Purchase: %s\n", money(stats.TotalPurchase))
		fmt.Printf("Paid:     %s\n", money(stats.TotalPaid))
		pending := money(stats.Pending)
		if stats.Pending.IsPositive() {
			pending = ui.RenderWarn(pending)
		}
		fmt.Printf("Pending:  %s\n\n", pending)
	},
}

func printCustomers(customers []schema.Customer) {
	if jsonOutput {
		printJSON(customers)
		return
	}
	if len(customers) == 0 {
		fmt.Println(ui.RenderMuted("No customers"))
		return
	}
	rows := make([][]string, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Name, c.Phone, c.Email})
	}
	fmt.Println(ui.Table([]string{"ID", "Name", "Phone", "Email"}, rows))
}

func init() {
	customerAddCmd.Flags().String("name", "", "Customer name (required)")
	customerAddCmd.Flags().String("phone", "", "Phone number (required)")
	customerAddCmd.Flags().String("email", "", "Email address")
	customerAddCmd.Flags().String("address", "", "Postal address")

	addCustomerEditFlags(customerEditCmd)

	customerSearchCmd.Flags().String("by", "name", "Field to search: name or phone")

	customerCmd.AddCommand(customerAddCmd)
	customerCmd.AddCommand(customerEditCmd)
	customerCmd.AddCommand(customerListCmd)
	customerCmd.AddCommand(customerSearchCmd)
	customerCmd.AddCommand(customerShowCmd)
	rootCmd.AddCommand(customerCmd)
}
