package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"order_reminder_service/internal/infra/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reminders",
		Short: "Order expiration reminder service",
		Long: `Schedules, tracks and delivers expiration reminders for orders.

Reminders are materialized when an order is created or changed, one per applicable interval
rule, and delivered by a periodic dispatch sweep. Configuration comes from the environment
(and .env); flags override it.`,
		SilenceUsage: true,
	}
	addPersistentFlags(root)
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(intervalsCmd())
	root.AddCommand(remindersCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.String("database-driver", "", "database driver: postgres or sqlite")
	flags.String("database-url", "", "database connection string")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("json", false, "output JSON")
	_ = viper.BindPFlag(config.ViperKey(config.KeyDatabaseDriver), flags.Lookup("database-driver"))
	_ = viper.BindPFlag(config.ViperKey(config.KeyDatabaseURL), flags.Lookup("database-url"))
	_ = viper.BindPFlag(config.ViperKey(config.KeyLogLevel), flags.Lookup("log-level"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
