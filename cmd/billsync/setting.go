package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retailbill/billsync/internal/schema"
	"github.com/retailbill/billsync/internal/snapshot"
	"github.com/retailbill/billsync/internal/store"
	"github.com/retailbill/billsync/internal/ui"
	"github.com/retailbill/billsync/internal/upsert"
)

var settingCmd = &cobra.Command{
	Use:     "setting",
	GroupID: "records",
	Short:   "Read and change business settings",
}

var settingGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all settings",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		if len(args) == 1 {
			v, err := db.GetSetting(ctx, args[0], "")
			if err != nil {
				fatalf("%s", describe(err))
			}
			if jsonOutput {
				printJSON(schema.Setting{Key: args[0], Value: v})
				return
			}
			fmt.Println(v)
			return
		}

		settings, err := db.Settings(ctx)
		if err != nil {
			fatalf("%s", describe(err))
		}
		if jsonOutput {
			printJSON(settings)
			return
		}
		rows := make([][]string, 0, len(settings))
		for _, s := range settings {
			rows = append(rows, []string{s.Key, s.Value})
		}
		fmt.Println(ui.Table([]string{"Key", "Value"}, rows))
	},
}

var settingSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Change a setting",
	Example: `  billsync setting set business_name "Corner Shop"`,
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		if schema.IsLocalSetting(args[0]) {
			fatalf("%s is maintained by sync and cannot be set", args[0])
		}
		err := db.WithTx(ctx, func(tx *store.Tx) error {
			return upsert.Setting(ctx, tx, schema.Setting{Key: args[0], Value: args[1]})
		})
		if err != nil {
			fatalf("%s", describe(err))
		}
		fmt.Printf("%s %s = %s\n", ui.RenderPass("✓"), args[0], args[1])
	},
}

var settingImportCmd = &cobra.Command{
	Use:   "import <profile.toml>",
	Short: "Load the business profile from a TOML file",
	Long: `Load the business profile from a TOML file.

  [business]
  name = "Corner Shop"
  address = "12 Market Road"
  phone = "+91 98450 12345"
  email = "hello@cornershop.example"
  gst_number = "29ABCDE1234F1Z5"

  [reminders]
  days = 3
  template = "Dear {customer_name}, {amount} for invoice #{invoice_number} is due on {due_date}. - {business_name}"

Keys missing from the file are set to their defaults.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		_, closer := quietLogger(cfg)
		defer closer.Close()
		db := openStore(ctx, cfg)
		defer db.Close()

		profile, err := snapshot.LoadProfile(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		settings := profile.Settings()
		err = db.WithTx(ctx, func(tx *store.Tx) error {
			for _, s := range settings {
				if err := upsert.Setting(ctx, tx, s); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			fatalf("%s", describe(err))
		}
		fmt.Printf("%s Imported %d settings for %s\n", ui.RenderPass("✓"), len(settings), profile.Business.Name)
	},
}

func init() {
	settingCmd.AddCommand(settingGetCmd)
	settingCmd.AddCommand(settingSetCmd)
	settingCmd.AddCommand(settingImportCmd)
	rootCmd.AddCommand(settingCmd)
}
