package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/DerkJan1/saasgrid-mvp/internal/config"
	"github.com/DerkJan1/saasgrid-mvp/internal/dedup"
	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
	"github.com/DerkJan1/saasgrid-mvp/internal/metrics"
	"github.com/DerkJan1/saasgrid-mvp/internal/output"
	"github.com/DerkJan1/saasgrid-mvp/internal/pipeline"
	"github.com/DerkJan1/saasgrid-mvp/internal/store"
	"github.com/DerkJan1/saasgrid-mvp/internal/ui"
)

var (
	companyID   string
	outputFile  string
	mergeMode   bool
	storeDriver string
	dbPath      string
	projectID   string
	stateFile   string
)

var processCmd = &cobra.Command{
	Use:   "process <file-or-directory>...",
	Short: "Process revenue spreadsheets and compute SaaS metrics",
	Long: `The process command reads one or more revenue spreadsheets, detects each
table's layout, extracts a normalized monthly ledger, and computes the
company's metrics series. With a store configured, uploads accumulate into
the company's ledger history and metrics cover all stored periods.

A deduplication state file (--state) skips files whose exact contents were
already processed for the same company.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&companyID, "company", "", "Company identifier (required)")
	processCmd.Flags().StringVar(&outputFile, "out", "", "Output JSON file (default: stdout)")
	processCmd.Flags().BoolVar(&mergeMode, "merge", false, "Merge with existing output file")
	processCmd.Flags().StringVar(&storeDriver, "store", "", "Store driver: sqlite, firestore, or none (overrides config)")
	processCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	processCmd.Flags().StringVar(&projectID, "project", "", "Firestore project ID (overrides config)")
	processCmd.Flags().StringVar(&stateFile, "state", "", "Deduplication state file")
	processCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !verbose {
		ui.Header("Processing Revenue Uploads")
		ui.Step(1, 4, "Collecting files")
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no spreadsheet files found\n\nPlease check:\n  - Paths are correct\n  - Files have supported extensions (.csv, .xlsx)\n  - You have read permissions on the files")
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Found %d spreadsheet files\n", len(files))
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d spreadsheet files", len(files)))
	}

	if !verbose {
		ui.Step(2, 4, "Loading deduplication state")
	}
	state, files, fingerprints, skipped, err := applyDedup(files)
	if err != nil {
		return err
	}
	if skipped > 0 {
		ui.Warning(fmt.Sprintf("Skipped %d already-processed file(s)", skipped))
	}
	if len(files) == 0 {
		return fmt.Errorf("all %d file(s) were already processed for company %q", skipped, companyID)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	if !verbose {
		ui.Step(3, 4, "Extracting records and computing metrics")
	}

	var bar *progressbar.ProgressBar
	if !verbose && len(files) > 1 {
		bar = progressbar.Default(int64(len(files)))
	}

	p := pipeline.NewWithConfig(st, cfg)
	var failed int
	results, err := p.ProcessFiles(ctx, files, companyID, func(path string, result *pipeline.Result, err error) {
		if bar != nil {
			bar.Add(1)
		}
		if err != nil {
			failed++
			ui.Error(fmt.Sprintf("%s: %v", filepath.Base(path), err))
			return
		}
		// Fingerprint only files that processed, so a failed file is
		// retried on the next run.
		if state != nil {
			state.RecordUpload(fingerprints[path], result.UploadID, result.FileName, time.Now())
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "  %s: shape=%s confidence=%.2f entries=%d\n",
				result.FileName, result.Decision.Shape, result.Decision.Confidence, len(result.Entries))
		}
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("all %d file(s) failed to process", len(files))
	}

	// Save state before writing output so a retried run does not reprocess
	// files whose ledger entries are already persisted.
	if state != nil {
		if err := dedup.SaveState(state, stateFile); err != nil {
			return fmt.Errorf("failed to save state file before writing output: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Saved state with %d fingerprints to %s\n",
				state.Metadata.TotalFingerprints, stateFile)
		}
	}

	if !verbose {
		ui.Step(4, 4, "Writing report")
	}

	report := buildReport(results, st != nil)
	opts := output.WriteOptions{MergeMode: mergeMode, FilePath: outputFile}
	if err := output.WriteReportToFile(report, opts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if outputFile != "" {
		ui.Success(fmt.Sprintf("Report written to %s", outputFile))
	}
	summarize(results, report, failed)
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Default()
}

// collectFiles expands directory arguments into their spreadsheet files and
// passes file arguments through.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".csv", ".xlsx", ".xls":
				files = append(files, filepath.Join(arg, entry.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// applyDedup loads the state file when enabled and filters out files whose
// fingerprint was already recorded for this company. Returns the state (nil
// when disabled), the remaining files, their fingerprints, and the skip
// count. Survivors are recorded into the state after they process.
func applyDedup(files []string) (*dedup.State, []string, map[string]string, int, error) {
	if stateFile == "" {
		return nil, files, nil, 0, nil
	}

	state, err := dedup.LoadState(stateFile)
	if err != nil {
		if !os.IsNotExist(err) {
			// A state file that exists but cannot be loaded must not be
			// silently replaced: that would reprocess every prior upload.
			return nil, nil, nil, 0, fmt.Errorf("failed to load existing state file %q: %w\n\nThe state file exists but cannot be loaded. Deleting it will cause all files to be reprocessed.\nBack it up before resetting: cp %q %q.backup", stateFile, err, stateFile, stateFile)
		}
		state = dedup.NewState()
		if verbose {
			fmt.Fprintf(os.Stderr, "State file not found, creating new state\n")
		}
	}

	var fresh []string
	fingerprints := make(map[string]string)
	skipped := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
		}
		fp := dedup.GenerateFingerprint(companyID, data)
		if state.IsDuplicate(fp) {
			skipped++
			continue
		}
		fingerprints[path] = fp
		fresh = append(fresh, path)
	}
	return state, fresh, fingerprints, skipped, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	driver := cfg.Store.Driver
	if storeDriver != "" {
		driver = config.StoreDriver(storeDriver)
	}
	switch driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverSQLite:
		path := cfg.Store.Path
		if dbPath != "" {
			path = dbPath
		}
		if path == "" {
			path = "saasgrid.db"
		}
		return store.NewSQLiteStore(path)
	case config.DriverFirestore:
		project := cfg.Store.Project
		if projectID != "" {
			project = projectID
		}
		if project == "" {
			return nil, fmt.Errorf("firestore store requires a project ID (--project or store.project in config)")
		}
		return store.NewFirestoreStore(ctx, project)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// buildReport assembles the final report. With a store, the last result's
// metrics already cover the whole ledger history; without one, each result
// was scored in isolation, so the series is recomputed over every file's
// entries combined. Warnings are the deduplicated union across results.
func buildReport(results []*pipeline.Result, stored bool) *output.Report {
	last := results[len(results)-1]
	report := &output.Report{
		CompanyID:   last.CompanyID,
		GeneratedAt: time.Now(),
		Metrics:     last.Metrics,
	}
	if !stored {
		var entries []domain.LedgerEntry
		for _, r := range results {
			entries = append(entries, r.Entries...)
		}
		report.Metrics = metrics.Compute(entries)
	}
	seen := make(map[string]bool)
	for _, r := range results {
		for _, w := range r.Warnings {
			if !seen[w] {
				seen[w] = true
				report.Warnings = append(report.Warnings, w)
			}
		}
	}
	return report
}

func summarize(results []*pipeline.Result, report *output.Report, failed int) {
	var entries, warnings int
	for _, r := range results {
		entries += len(r.Entries)
		warnings += len(r.Warnings)
	}

	fmt.Fprintf(os.Stderr, "\n")
	ui.Success(fmt.Sprintf("Processed %d file(s): %d ledger entries across %d period(s)",
		len(results), entries, len(report.Metrics)))
	if warnings > 0 {
		ui.Warning(fmt.Sprintf("%d warning(s) raised during extraction", warnings))
		if !verbose {
			ui.Info("Run with --verbose to see per-file details")
		}
	}
	if failed > 0 {
		ui.Error(fmt.Sprintf("%d file(s) failed", failed))
	}
}
