package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/remote"
	"github.com/retailbill/billsync/internal/server"
	"github.com/retailbill/billsync/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run the sync endpoint over the authoritative store",
	Long: `Run the HTTP sync endpoint that clients push to and pull from.

The endpoint accepts POST ?action=sync (alias import) with a full payload,
applied in one transaction, and GET ?action=export returning the whole
store. The store is a relational database selected by server.dialect:

  sqlite   a local file (server.dsn is its path)
  libsql   an embedded or remote libSQL database (file path or libsql:// URL)
  mysql    a MySQL or MariaDB server (server.dsn is a go-sql-driver DSN,
           e.g. user:pass@tcp(localhost:3306)/billing)

Tables are created on start if missing.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger, closer := newLogger(cfg)
		defer closer.Close()
		if logger.GetLevel() < logrus.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		dialect, err := remote.ParseDialect(cfg.Server.Dialect)
		if err != nil {
			fatalf("%v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		adapter, err := remote.Open(ctx, dialect, cfg.Server.DSN, logger)
		if err != nil {
			fatalf("failed to open %s store: %v", dialect, err)
		}
		defer adapter.Close()

		srv := server.New(adapter, server.Config{
			Addr:         cfg.Server.Addr,
			Path:         cfg.Server.Path,
			CORSOrigins:  cfg.Server.CORSOrigins,
			MaxBodyBytes: int64(cfg.Server.MaxBodyMB) << 20,
			Logger:       logger,
		})
		if err := srv.Start(); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Sync endpoint on http://%s%s (%s store)\n", ui.RenderAccent("🚀"), srv.Addr(), cfg.Server.Path, dialect)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		select {
		case <-ctx.Done():
		case err := <-srv.Err():
			if err != nil {
				fatalf("sync server failed: %v", err)
			}
		}

		fmt.Println("\nShutting down sync server...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := srv.Stop(stopCtx); err != nil {
			fatalf("%v", err)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
