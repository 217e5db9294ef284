// Package cmd defines the CLI commands for the nameharvest executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nameharvest",
		Short: "Concurrent harvester for categorized name listings",
		Long: `nameharvest crawls a paginated name-listing site, extracts the
records for each category concurrently, and persists them as CSV,
SQLite, and a JSON document snapshot with a progress checkpoint.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (optional; built-in defaults apply without one)")

	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
