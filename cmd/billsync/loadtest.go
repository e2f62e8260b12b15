package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/loadtest"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/ui"
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	GroupID: "advanced",
	Short:   "Fill an empty local store with demo data",
	Long: `Fill the local store with generated customers, products, invoices and
expenses. The data is the same for the same --seed, so several machines can
be seeded alike. Seeding a store that already holds records needs --force and
overwrites records with the same ids.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			for _, c := range []schema.Collection{schema.Customers, schema.Products, schema.Invoices, schema.Expenses} {
				n, err := db.Count(ctx, c)
				if err != nil {
					fatalf("%s", describe(err))
				}
				if n > 0 {
					fatalf("store already has %d %s; use --force to seed anyway", n, c)
				}
			}
		}

		p, err := loadtest.Generate(sizesFromFlags(cmd), optionsFromFlags(cmd))
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
		fmt.Printf("%s Seeded %d records\n", ui.RenderPass("✓"), sum.Total())
		fmt.Printf("   Customers: %d, Products: %d, Invoices: %d, Expenses: %d\n",
			sum.Customers, sum.Products, sum.Invoices, sum.Expenses)
	},
}

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "advanced",
	Short:   "Measure sync latency with many concurrent clients",
	Long: `Simulate many shops syncing at once against the configured server. Each
client pushes a full payload and pulls the server state, --rounds times.

The payload is generated demo data unless --local is set, in which case the
local store is pushed. Run this against a test server: every push is applied
to the server's store.`,
	Example: `  billsync serve --addr :9090 --config test.yaml &
  billsync loadtest --clients 50 --rounds 10`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cfg := loadConfig()
		logger, closer := quietLogger(cfg)
		defer closer.Close()
		cl := newClient(cfg, logger)

		clients, _ := cmd.Flags().GetInt("clients")
		rounds, _ := cmd.Flags().GetInt("rounds")
		local, _ := cmd.Flags().GetBool("local")

		var p *schema.Payload
		if local {
			db := openStore(ctx, cfg)
			exported, err := db.Export(ctx)
			db.Close()
			if err != nil {
				fatalf("%s", describe(err))
			}
			p = exported
		} else {
			generated, err := loadtest.Generate(sizesFromFlags(cmd), optionsFromFlags(cmd))
			if err != nil {
				fatalf("%v", err)
			}
			p = generated
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Connectivity.Timeout)
		err := cl.Ping(pingCtx)
		cancel()
		if err != nil {
			fatalf("server at %s is unreachable: %v", cl.URL(), err)
		}

		if !jsonOutput {
			fmt.Printf("%s %d clients × %d rounds, %d records per push, against %s\n\n",
				ui.RenderAccent("⚡"), clients, rounds, p.Total(), cl.URL())
		}
		res, err := loadtest.Run(ctx, cl, p, clients, rounds)
		if err != nil {
			fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(res)
			return
		}

		res.Push.Fprint(os.Stdout, "Push")
		fmt.Println()
		res.Pull.Fprint(os.Stdout, "Pull")
		fmt.Println()
		total := res.Push.Requests + res.Pull.Requests
		fmt.Printf("Elapsed: %v (%.1f requests/s)\n", res.Elapsed.Round(time.Millisecond), float64(total)/res.Elapsed.Seconds())
		if len(res.Failures) > 0 {
			fmt.Println()
			for _, f := range res.Failures {
				fmt.Printf("%s %s\n", ui.RenderFail("✗"), f)
			}
			os.Exit(1)
		}
	},
}

func sizesFromFlags(cmd *cobra.Command) loadtest.Sizes {
	s := loadtest.Sizes{}
	s.Customers, _ = cmd.Flags().GetInt("customers")
	s.Products, _ = cmd.Flags().GetInt("products")
	s.Invoices, _ = cmd.Flags().GetInt("invoices")
	s.Expenses, _ = cmd.Flags().GetInt("expenses")
	return s
}

func optionsFromFlags(cmd *cobra.Command) loadtest.Options {
	seed, _ := cmd.Flags().GetInt64("seed")
	days, _ := cmd.Flags().GetInt("days")
	return loadtest.Options{Seed: seed, Days: days}
}

func addGenerateFlags(cmd *cobra.Command) {
	def := loadtest.DefaultSizes()
	cmd.Flags().Int("customers", def.Customers, "Customers to generate")
	cmd.Flags().Int("products", def.Products, "Products to generate")
	cmd.Flags().Int("invoices", def.Invoices, "Invoices to generate")
	cmd.Flags().Int("expenses", def.Expenses, "Expenses to generate")
	cmd.Flags().Int64("seed", 42, "Random seed")
	cmd.Flags().Int("days", 60, "Days of history to spread records over")
}

func init() {
	addGenerateFlags(seedCmd)
	seedCmd.Flags().Bool("force", false, "Seed even if the store already has records")

	addGenerateFlags(loadtestCmd)
	loadtestCmd.Flags().Int("clients", 10, "Concurrent clients")
	loadtestCmd.Flags().Int("rounds", 5, "Syncs per client")
	loadtestCmd.Flags().Bool("local", false, "Push the local store instead of generated data")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(loadtestCmd)
}
