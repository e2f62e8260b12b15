package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/ui"
	"github.com/retailbill/billsync/internal/upsert"
)

var productCmd = &cobra.Command{
	Use:     "product",
	GroupID: "records",
	Short:   "Manage products",
}

var productAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add a product",
	Example: `  billsync product add --name "Notebook A5" --sku NB-A5 --price 45 --stock 120 --tax 12`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		p := schema.Product{Tax: decimalFlag(cmd, "tax")}
		p.Name, _ = cmd.Flags().GetString("name")
		p.SKU, _ = cmd.Flags().GetString("sku")
		p.Category, _ = cmd.Flags().GetString("category")
		p.Stock, _ = cmd.Flags().GetInt64("stock")
		if cmd.Flags().Changed("price") {
			p.Price = schema.Money(decimalFlag(cmd, "price"))
		}

		var id int64
		err := db.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			id, err = upsert.Product(ctx, tx, upsert.Create(p))
			return err
		})
		if err != nil {
			fatalf("%s", describe(err))
		}

		if jsonOutput {
			p.ID = id
			printJSON(p)
			return
		}
		fmt.Printf("%s Added product %d: %s at %s\n", ui.RenderPass("✓"), id, p.Name, money(p.Price.Decimal))
	},
}

var productEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a product",
	Long: `Change a product. Fields without a flag keep their value and the record
is written back whole, so the next push replaces the server copy.`,
	Example: `  billsync product edit 4 --price 48.50 --stock 90`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		id := parseID(args[0])
		p, err := db.Product(ctx, id)
		if err != nil {
			fatalf("%s", describe(err))
		}
		editProduct(cmd, p)

		err = db.WithTx(ctx, func(tx *store.Tx) error {
			_, err := upsert.Product(ctx, tx, upsert.Replace(id, *p))
			return err
		})
		if err != nil {
			fatalf("%s", describe(err))
		}

		if jsonOutput {
			printJSON(p)
			return
		}
		fmt.Printf("%s Updated product %d: %s at %s\n", ui.RenderPass("✓"), id, p.Name, money(p.Price.Decimal))
	},
}

func addProductEditFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Product name")
	cmd.Flags().String("sku", "", "Stock keeping unit")
	cmd.Flags().String("price", "", "Unit price")
	cmd.Flags().Int64("stock", 0, "Units in stock")
	cmd.Flags().String("category", "", "Category")
	cmd.Flags().String("tax", "", "Tax percentage applied per invoice line")
}

// editProduct overwrites the fields of p whose flags were set.
func editProduct(cmd *cobra.Command, p *schema.Product) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		p.Name, _ = flags.GetString("name")
	}
	if flags.Changed("sku") {
		p.SKU, _ = flags.GetString("sku")
	}
	if flags.Changed("category") {
		p.Category, _ = flags.GetString("category")
	}
	if flags.Changed("stock") {
		p.Stock, _ = flags.GetInt64("stock")
	}
	if flags.Changed("price") {
		p.Price = schema.Money(decimalFlag(cmd, "price"))
	}
	if flags.Changed("tax") {
		p.Tax = decimalFlag(cmd, "tax")
	}
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		products, err := db.Products(ctx)
		if err != nil {
			fatalf("%s", describe(err))
		}
		printProducts(products)
	},
}

var productSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find products by name or SKU (case-insensitive substring)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		by, _ := cmd.Flags().GetString("by")
		products, err := db.SearchProducts(ctx, by, args[0])
		if err != nil {
			fatalf("%s", describe(err))
		}
		printProducts(products)
	},
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a product from the local store",
	Long: `Delete a product from the local store.

Deletes are local only: the server keeps its copy, and the next pull
brings the product back.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		id := parseID(args[0])
		if err := db.Delete(ctx, schema.Products, id); err != nil {
			fatalf("%s", describe(err))
		}
		fmt.Printf("%s Deleted product %d\n", ui.RenderPass("✓"), id)
	},
}

func printProducts(products []schema.Product) {
	if jsonOutput {
		printJSON(products)
		return
	}
	if len(products) == 0 {
		fmt.Println(ui.RenderMuted("No products"))
		return
	}
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		stock := strconv.FormatInt(p.Stock, 10)
		if p.Stock == 0 {
			stock = ui.RenderWarn(stock)
		}
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10), p.Name, p.SKU, p.Category,
			money(p.Price.Decimal), p.Tax.String() + "%", stock,
		})
	}
	fmt.Println(ui.Table([]string{"ID", "Name", "SKU", "Category", "Price", "Tax", "Stock"}, rows))
}

func init() {
	productAddCmd.Flags().String("name", "", "Product name (required)")
	productAddCmd.Flags().String("sku", "", "Stock keeping unit")
	productAddCmd.Flags().String("price", "", "Unit price (required)")
	productAddCmd.Flags().Int64("stock", 0, "Units in stock")
	productAddCmd.Flags().String("category", "", "Category")
	productAddCmd.Flags().String("tax", "0", "Tax percentage applied per invoice line")

	addProductEditFlags(productEditCmd)

	productSearchCmd.Flags().String("by", "name", "Field to search: name or sku")

	productCmd.AddCommand(productAddCmd)
	productCmd.AddCommand(productEditCmd)
	productCmd.AddCommand(productListCmd)
	productCmd.AddCommand(productSearchCmd)
	productCmd.AddCommand(productDeleteCmd)
	rootCmd.AddCommand(productCmd)
}
