package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/client"
	"github.com/retailbill/billsync/internal/config"
	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/ui"
)

// fatalf prints an error and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]any{ui.RenderFail("Error:")}, args...)...)
	os.Exit(1)
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatalf("%v", err)
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	return cfg
}

// newLogger builds the process logger. The closer must be closed on exit.
func newLogger(cfg *config.Config) (*logrus.Logger, io.Closer) {
	logger, closer, err := config.NewLogger(cfg.Log)
	if err != nil {
		fatalf("%v", err)
	}
	return logger, closer
}

// quietLogger is newLogger for one-shot commands: the default info level
// drops to warn so progress entries do not mix with command output.
func quietLogger(cfg *config.Config) (*logrus.Logger, io.Closer) {
	logger, closer := newLogger(cfg)
	if cfg.Log.Level == "info" && cfg.Log.File == "" {
		logger.SetLevel(logrus.WarnLevel)
	}
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())
	return logger, closer
}

// openStore opens the local store and seeds the default business profile.
func openStore(ctx context.Context, cfg *config.Config) *store.DB {
	db, err := store.OpenContext(ctx, cfg.Store.Path)
	if err != nil {
		fatalf("failed to open local store: %v", err)
	}
	if err := db.SeedSettings(ctx, schema.DefaultSettings()); err != nil {
		db.Close()
		fatalf("failed to seed settings: %v", err)
	}
	return db
}

func newClient(cfg *config.Config, logger logrus.FieldLogger) *client.Client {
	cl, err := client.New(client.Config{
		URL:     cfg.Remote.URL,
		Timeout: cfg.Remote.Timeout,
		Logger:  logger,
	})
	if err != nil {
		fatalf("%v", err)
	}
	return cl
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("failed to encode output: %v", err)
	}
}

// money formats an amount with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		fatalf("invalid id %q", arg)
	}
	return id
}

// decimalFlag reads a decimal flag, defaulting to zero when unset.
func decimalFlag(cmd *cobra.Command, name string) decimal.Decimal {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		fatalf("invalid --%s %q: not a number", name, s)
	}
	return d
}

// describe turns store and validation errors into one line.
func describe(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return "record not found"
	}
	return err.Error()
}
