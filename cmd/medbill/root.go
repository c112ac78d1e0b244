package main

import (
	"github.com/spf13/cobra"

	"github.com/gyeh/medbill/internal/config"
)

// cfg is resolved once per invocation, before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "medbill",
	Short: "Medical bill analysis service and reference fee tooling",
	Long: "Analyzes medical bills for duplicate charges, inflated prices and math errors, " +
		"and loads reference fee schedules into Postgres via the COPY protocol.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("dsn", "", "Postgres connection string (or set DATABASE_URL)")
	pf.String("log-format", "text", "Log format: text or json (or set LOG_FORMAT)")
}
