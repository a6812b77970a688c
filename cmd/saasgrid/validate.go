package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DerkJan1/saasgrid-mvp/internal/metrics"
	"github.com/DerkJan1/saasgrid-mvp/internal/output"
	"github.com/DerkJan1/saasgrid-mvp/internal/ui"
	"github.com/DerkJan1/saasgrid-mvp/internal/validate"
)

var (
	validateCompany string
	validateOut     string
	computeMetrics  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Strictly validate a long-form or aggregate CSV upload",
	Long: `The validate command runs the strict row-level ingestion path on a CSV
upload: every problem is reported with its row and column, and rows are
accepted whole or not at all. Nothing is persisted.

With --metrics the accepted rows are folded into monthly aggregates and the
KPI series is computed from them.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateCompany, "company", "", "Company identifier for the report header")
	validateCmd.Flags().StringVar(&validateOut, "out", "", "Output JSON file for --metrics (default: stdout)")
	validateCmd.Flags().BoolVar(&computeMetrics, "metrics", false, "Compute the KPI series from accepted rows")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[0], err)
	}

	vcfg := validate.Config{
		RequiredColumns:     cfg.Validation.RequiredColumns,
		BreakdownRatioLimit: cfg.Validation.BreakdownRatioLimit,
		ExtraAliases: map[string][]string{
			"customerId":   cfg.Aliases.ID,
			"customerName": cfg.Aliases.Name,
			"period":       cfg.Aliases.Period,
			"amount":       cfg.Aliases.Amount,
		},
	}
	result := validate.Validate(string(data), vcfg)

	for _, finding := range result.Errors {
		if finding.Row == 0 {
			ui.Error(finding.Message)
		} else {
			ui.Error(fmt.Sprintf("row %d [%s] %q: %s", finding.Row, finding.Column, finding.Value, finding.Message))
		}
	}
	for _, finding := range result.Warnings {
		ui.Warning(fmt.Sprintf("row %d [%s]: %s", finding.Row, finding.Column, finding.Message))
	}

	s := result.Summary
	if s.ErrorRows > 0 || len(result.Errors) > 0 {
		ui.Error(fmt.Sprintf("%d of %d rows rejected (%d warnings)", s.ErrorRows, s.TotalRows, s.WarningRows))
	} else {
		ui.Success(fmt.Sprintf("all %d rows valid (%d warnings)", s.TotalRows, s.WarningRows))
	}

	if !computeMetrics {
		if len(result.Errors) > 0 {
			return fmt.Errorf("validation failed")
		}
		return nil
	}

	if len(result.Accepted) == 0 {
		return fmt.Errorf("no valid rows to compute metrics from")
	}
	series := metrics.ComputeFromAggregates(result.Aggregates())
	report := &output.Report{
		CompanyID:   validateCompany,
		GeneratedAt: time.Now(),
		Metrics:     series,
	}
	return output.WriteReportToFile(report, output.WriteOptions{FilePath: validateOut})
}
