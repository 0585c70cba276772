// Package cmd wires the propdesk CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "propdesk",
	Short: "A simulated prop-trading challenge platform",
	Long: `Propdesk runs a simulated prop-trading challenge platform: traders open
demo accounts, trade against simulated quotes, and an evaluator decides
whether they pass or fail based on drawdown and profit rules.

Subcommands:
  serve   run the settlement API with the quote feed and mark loop
  demo    run a scripted challenge session against an in-memory store`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
