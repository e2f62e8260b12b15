package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/client"
	"github.com/retailbill/billsync/internal/config"
	"github.com/retailbill/billsync/internal/connectivity"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/syncer"
	"github.com/retailbill/billsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Sync the local store with the server",
	Long: `Sync the local store with the server.

The first sync of a store only uploads. After that every sync uploads the
whole local store and then downloads the server's state; each step can fail
without undoing the other. Records are matched by id and the last writer
wins. Deletes are not synced.

With --interactive, billsync asks before syncing and, once a sync has been
recorded, before each step.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		interactive, _ := cmd.Flags().GetBool("interactive")
		runSync(cmd.Context(), syncer.ModeAuto, interactive)
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "sync",
	Short:   "Upload the whole local store to the server",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runSync(cmd.Context(), syncer.ModePush, false)
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Download the server's state into the local store",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runSync(cmd.Context(), syncer.ModePull, false)
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local record counts, last sync and server reachability",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		logger, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()
		cl := newClient(cfg, logger)

		type status struct {
			Store    string         `json:"store"`
			Remote   string         `json:"remote"`
			Online   bool           `json:"online"`
			LastSync string         `json:"last_sync"`
			Records  map[string]int `json:"records"`
		}
		st := status{Store: db.Path(), Remote: cl.URL(), Records: map[string]int{}}

		for _, c := range []schema.Collection{schema.Customers, schema.Products, schema.Invoices, schema.Expenses} {
			n, err := db.Count(ctx, c)
			if err != nil {
				fatalf("%s", describe(err))
			}
			st.Records[string(c)] = n
		}
		st.LastSync, _ = db.GetSetting(ctx, schema.SettingLastSync, "")

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Connectivity.Timeout)
		st.Online = cl.Ping(pingCtx) == nil
		cancel()

		if jsonOutput {
			printJSON(st)
			return
		}

		fmt.Printf("\n%s billsync status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Store:     %s\n", st.Store)
		fmt.Printf("Server:    %s ", st.Remote)
		if st.Online {
			fmt.Println(ui.RenderState("online"))
		} else {
			fmt.Println(ui.RenderState("offline"))
		}
		if st.LastSync == "" {
			fmt.Printf("Last sync: %s\n", ui.RenderMuted("never"))
		} else {
			fmt.Printf("Last sync: %s\n", formatSyncTime(st.LastSync))
		}
		fmt.Printf("Customers: %d\n", st.Records[string(schema.Customers)])
		fmt.Printf("Products:  %d\n", st.Records[string(schema.Products)])
		fmt.Printf("Invoices:  %d\n", st.Records[string(schema.Invoices)])
		fmt.Printf("Expenses:  %d\n\n", st.Records[string(schema.Expenses)])
	},
}

// runSync performs one orchestrated run and reports it.
func runSync(ctx context.Context, mode syncer.Mode, interactive bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	logger, closer := quietLogger(cfg)
	defer closer.Close()
	db := openStore(ctx, cfg)
	defer db.Close()
	cl := newClient(cfg, logger)

	orch := newOneShot(ctx, cfg, db, cl, logger)
	if err := orch.LoadLastSync(ctx); err != nil {
		logger.WithError(err).Warn("failed to load last sync")
	}

	var (
		res syncer.Result
		err error
	)
	switch {
	case interactive:
		if !ui.IsInteractive() {
			fatalf("--interactive needs a terminal")
		}
		res, err = orch.SyncInteractive(ctx, confirm)
	case mode == syncer.ModePush:
		res, err = orch.Push(ctx)
	case mode == syncer.ModePull:
		res, err = orch.Pull(ctx)
	default:
		res, err = orch.Sync(ctx)
	}

	if jsonOutput {
		printJSON(struct {
			syncer.Result
			PushError string `json:"push_error,omitempty"`
			PullError string `json:"pull_error,omitempty"`
			Error     string `json:"error,omitempty"`
		}{res, errString(res.PushErr), errString(res.PullErr), errString(err)})
		if err != nil {
			os.Exit(1)
		}
		return
	}

	switch {
	case errors.Is(err, syncer.ErrDeclined):
		fmt.Println(ui.RenderMuted("Sync cancelled"))
		return
	case errors.Is(err, syncer.ErrOffline):
		fatalf("server at %s is unreachable; records stay local until the next sync", cl.URL())
	}

	printResult(res)
	if err != nil {
		if res.PushErr == nil && res.PullErr == nil {
			fatalf("%v", err)
		}
		os.Exit(1)
	}
}

// newOneShot builds an orchestrator for a single run. Connectivity is one
// probe taken now.
func newOneShot(ctx context.Context, cfg *config.Config, db *store.DB, cl *client.Client, logger logrus.FieldLogger) *syncer.Orchestrator {
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Connectivity.Timeout)
	defer cancel()
	online := cl.Ping(pingCtx) == nil

	return syncer.New(db, cl, connectivity.NewStatic(online), &syncer.Config{
		Interval: cfg.Sync.Interval,
		Logger:   logger,
	})
}

func printResult(res syncer.Result) {
	switch {
	case res.Pushed:
		fmt.Printf("%s Uploaded %d records\n", ui.RenderPass("✓"), res.PushRecords)
	case res.PushSkipped:
		fmt.Printf("%s Upload skipped\n", ui.RenderMuted("-"))
	case res.PushErr != nil:
		fmt.Printf("%s Upload failed: %v\n", ui.RenderFail("✗"), res.PushErr)
	}

	switch {
	case res.Pulled:
		fmt.Printf("%s Downloaded %d records (customers %d, products %d, invoices %d, expenses %d, settings %d)\n",
			ui.RenderPass("✓"), res.Imported.Total(),
			res.Imported.Customers, res.Imported.Products, res.Imported.Invoices, res.Imported.Expenses, res.Imported.Settings)
	case res.PullSkipped:
		fmt.Printf("%s Download skipped\n", ui.RenderMuted("-"))
	case res.PullErr != nil:
		fmt.Printf("%s Download failed: %v\n", ui.RenderFail("✗"), res.PullErr)
	case res.Mode == syncer.ModeAuto && res.Pushed:
		fmt.Printf("%s First sync: server data will be downloaded from the next sync on\n", ui.RenderMuted("-"))
	}
}

// confirm asks a yes/no question on the terminal.
func confirm(ctx context.Context, question string) (bool, error) {
	ok := true
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func formatSyncTime(v string) string {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return v
	}
	return fmt.Sprintf("%s (%s ago)", t.Local().Format("2006-01-02 15:04:05"), time.Since(t).Round(time.Second))
}

func init() {
	syncCmd.Flags().BoolP("interactive", "i", false, "Ask before syncing and before each step")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(statusCmd)
}
