package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saasgrid",
	Short: "SaaS revenue spreadsheet ingestion and metrics",
	Long: `saasgrid ingests customer revenue spreadsheets (CSV or XLSX), detects
their layout, extracts a normalized monthly ledger, and computes the standard
SaaS metrics series: MRR, ARR, revenue movements, retention, logo churn, and
magic number.

Example Usage:
  saasgrid process revenue.csv --company acme
  saasgrid process ./uploads --company acme --out report.json
  saasgrid process jan.csv --company acme --store none`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. Called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a configuration file (default: embedded config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed processing logs")
}
