package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/config"
	"github.com/retailbill/billsync/internal/connectivity"
	"github.com/retailbill/billsync/internal/dashboard"
	"github.com/retailbill/billsync/internal/syncer"
	"github.com/retailbill/billsync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Keep the local store in sync in the background",
	Long: `Run the background sync loop against the configured server.

The daemon uploads the local store every sync.interval while the server is
reachable, and uploads it again as soon as connectivity comes back. Progress is
published on the dashboard WebSocket (ws://localhost:<dashboard.port>/ws)
unless dashboard.enabled is false.

Changes to log.level and sync.interval in the config file are applied
without a restart.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v, err := config.New(configPath)
		if err != nil {
			fatalf("%v", err)
		}
		cfg, err := config.Decode(v)
		if err != nil {
			fatalf("%v", err)
		}
		if storePath != "" {
			cfg.Store.Path = storePath
		}
		logger, closer := newLogger(cfg)
		defer closer.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db := openStore(ctx, cfg)
		defer db.Close()
		cl := newClient(cfg, logger)

		monitor := connectivity.NewMonitor(cl, &connectivity.Config{
			Interval: cfg.Connectivity.Interval,
			Timeout:  cfg.Connectivity.Timeout,
			Logger:   logger,
		})
		monitor.Start(ctx)
		defer monitor.Stop()

		orch := syncer.New(db, cl, monitor, &syncer.Config{
			Interval: cfg.Sync.Interval,
			Logger:   logger,
		})

		if cfg.Dashboard.Enabled {
			dash := dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: logger,
			})
			if err := dash.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			defer func() {
				if err := dash.Stop(); err != nil {
					logger.WithError(err).Warn("dashboard shutdown failed")
				}
			}()

			h := dashboard.NewHandler(dash, db, logger)
			orch.OnStatus(h.OnStatus)
			if err := h.RefreshStats(ctx); err != nil {
				logger.WithError(err).Warn("failed to compute dashboard stats")
			}
			fmt.Printf("%s Dashboard on ws://%s/ws\n", ui.RenderAccent("📡"), dash.Addr())
		}

		orch.Start(ctx)
		defer orch.Stop()

		if config.Watch(v, func(next *config.Config, err error) {
			if err != nil {
				logger.WithError(err).Warn("ignoring invalid config change")
				return
			}
			if err := config.SetLevel(logger, next.Log.Level); err != nil {
				logger.WithError(err).Warn("ignoring invalid log level")
			}
			orch.SetInterval(next.Sync.Interval)
			logger.WithField("interval", next.Sync.Interval.String()).Info("config reloaded")
		}) {
			logger.WithField("file", v.ConfigFileUsed()).Debug("watching config file")
		}

		state := ui.RenderState("offline")
		if monitor.Online() {
			state = ui.RenderState("online")
		}
		fmt.Printf("%s Syncing %s with %s %s every %s\n",
			ui.RenderAccent("🔄"), db.Path(), cl.URL(), state, orch.Interval())
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		<-ctx.Done()
		fmt.Println("\nShutting down...")
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
