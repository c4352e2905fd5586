// Package cmd provides the ledgerctl commands.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Offline tools for the beanbot ledger",
	Long: `ledgerctl drives the ledger engine without a chat gateway.

Example:
  ledgerctl replay receipts.txt --gap 30s`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show server logs and the audit trail")

	rootCmd.AddCommand(replayCmd)
}

func exitOnError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
