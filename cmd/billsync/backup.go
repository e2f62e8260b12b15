package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/snapshot"
	"github.com/retailbill/billsync/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:     "backup <file>",
	GroupID: "advanced",
	Short:   "Write the local store to a snapshot file",
	Long: `Write every local record to a snapshot file. The format follows the file
extension: .yaml or .yml for YAML, .jsonl or .ndjson for one record per line,
anything else for JSON. A JSON snapshot has the same shape as a sync request.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		p, err := db.Export(ctx)
		if err != nil {
			fatalf("%s", describe(err))
		}
		if err := snapshot.WriteFile(args[0], p); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Wrote %d records to %s\n", ui.RenderPass("✓"), p.Total(), args[0])
	},
}

var restoreCmd = &cobra.Command{
	Use:     "restore <file>",
	GroupID: "advanced",
	Short:   "Merge a snapshot into the local store",
	Long: `Merge a snapshot into the local store. Records are upserted by id, the
same way a pull applies server data; records missing from the snapshot are
kept. The whole snapshot is applied in one transaction.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		p, err := snapshot.ReadFile(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		sum, err := db.Import(ctx, p)
		if err != nil {
			fatalf("%s", describe(err))
		}
		if jsonOutput {
			printJSON(sum)
			return
		}
		fmt.Printf("%s Restored %d records from %s\n", ui.RenderPass("✓"), sum.Total(), args[0])
		fmt.Printf("   Customers: %d, Products: %d, Invoices: %d, Expenses: %d, Settings: %d\n",
			sum.Customers, sum.Products, sum.Invoices, sum.Expenses, sum.Settings)
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
