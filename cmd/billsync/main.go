// Command billsync keeps a shop's local billing records in sync with a
// shared server, and manages those records from the terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"

	// Registers the "libsql" driver for the libsql server dialect.
	_ "github.com/tursodatabase/go-libsql"
)

var (
	configPath string
	storePath  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "billsync",
	Short: "Offline-first billing records with server sync",
	Long: `billsync manages customers, products, invoices and expenses in a local
store and keeps them in sync with a shared server.

Records are always written locally first. 'billsync sync' pushes the local
store to the server and pulls the server's state back; 'billsync daemon'
does the same on a timer and whenever the server becomes reachable again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: billsync.yaml in . or $HOME/.billsync)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Local store path (overrides store.path)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatalf("%v", err)
	}
	os.Exit(0)
}
