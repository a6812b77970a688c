package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

// Report is the serialized result of processing one or more uploads for
// a company: the full monthly metrics series plus any warnings raised
// along the way.
type Report struct {
	CompanyID   string                  `json:"companyId"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Metrics     []domain.MonthlyMetrics `json:"metrics"`
	Warnings    []string                `json:"warnings,omitempty"`
}

// WriteOptions configures how the report is written
type WriteOptions struct {
	MergeMode bool   // If true, load existing file and merge
	FilePath  string // Output path (empty = stdout)
}

// WriteReport serializes a Report to JSON with 2-space indentation
func WriteReport(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}

	return nil
}

// WriteReportToFile writes a Report to file or stdout based on options
func WriteReportToFile(report *Report, opts WriteOptions) (err error) {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	// Handle merge mode
	if opts.MergeMode && opts.FilePath != "" {
		existing, err := LoadReport(opts.FilePath)
		if err != nil {
			// If file doesn't exist, treat as fresh mode
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to load existing report for merge: %w", err)
			}
			// File doesn't exist, create new file
			fmt.Fprintf(os.Stderr, "Warning: merge mode requested but %s does not exist, creating new file\n", opts.FilePath)
		} else {
			merged, err := mergeReports(existing, report)
			if err != nil {
				return fmt.Errorf("failed to merge reports: %w", err)
			}
			report = merged
		}
	}

	// Write to stdout if no file path specified
	if opts.FilePath == "" {
		return WriteReport(report, os.Stdout)
	}

	// Write to file
	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteReport(report, f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", opts.FilePath, err)
	}

	return nil
}

// LoadReport reads an existing report file for merge mode
func LoadReport(filePath string) (*Report, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		// Return unwrapped error so caller can check os.IsNotExist
		// to distinguish "file not found" from other loading errors
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", filePath, closeErr)
		}
	}()

	var report Report
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report JSON: %w", err)
	}

	return &report, nil
}

// mergeReports combines an existing report with a new one for the same
// company. Periods present in both take the new report's value; the
// combined series is re-sorted chronologically and warnings are appended.
func mergeReports(existing, incoming *Report) (*Report, error) {
	if existing == nil || incoming == nil {
		return nil, fmt.Errorf("reports cannot be nil")
	}
	if existing.CompanyID != "" && incoming.CompanyID != "" && existing.CompanyID != incoming.CompanyID {
		return nil, fmt.Errorf("cannot merge reports for different companies (%q vs %q)", existing.CompanyID, incoming.CompanyID)
	}

	byPeriod := make(map[string]domain.MonthlyMetrics, len(existing.Metrics)+len(incoming.Metrics))
	for _, m := range existing.Metrics {
		byPeriod[m.Period] = m
	}
	for _, m := range incoming.Metrics {
		byPeriod[m.Period] = m
	}

	merged := &Report{
		CompanyID:   incoming.CompanyID,
		GeneratedAt: incoming.GeneratedAt,
		Metrics:     make([]domain.MonthlyMetrics, 0, len(byPeriod)),
		Warnings:    append(append([]string{}, existing.Warnings...), incoming.Warnings...),
	}
	for _, m := range byPeriod {
		merged.Metrics = append(merged.Metrics, m)
	}
	sort.Slice(merged.Metrics, func(i, j int) bool {
		return merged.Metrics[i].Period < merged.Metrics[j].Period
	})

	return merged, nil
}
