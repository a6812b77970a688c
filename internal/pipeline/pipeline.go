// Package pipeline orchestrates one upload end to end: reader selection,
// format detection, record extraction, metric computation, and optional
// persistence.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/DerkJan1/saasgrid-mvp/internal/config"
	"github.com/DerkJan1/saasgrid-mvp/internal/detect"
	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
	"github.com/DerkJan1/saasgrid-mvp/internal/extract"
	"github.com/DerkJan1/saasgrid-mvp/internal/metrics"
	"github.com/DerkJan1/saasgrid-mvp/internal/registry"
	"github.com/DerkJan1/saasgrid-mvp/internal/store"
)

// Result contains the outcome of processing a single upload.
type Result struct {
	UploadID    string
	CompanyID   string
	FileName    string
	ProcessedAt time.Time
	Decision    domain.FormatDecision
	Entries     []domain.LedgerEntry
	Metrics     []domain.MonthlyMetrics
	Warnings    []string
}

// Pipeline wires the processing stages together. The store is optional;
// with no store each upload is scored in isolation, with one the metrics
// are recomputed over the company's full ledger history.
type Pipeline struct {
	registry  *registry.Registry
	detector  *detect.Detector
	extractor *extract.Extractor
	store     store.Store
}

// New creates a pipeline with the built-in column aliases and year bounds.
// st may be nil to disable persistence.
func New(st store.Store) *Pipeline {
	return NewWithConfig(st, nil)
}

// NewWithConfig creates a pipeline whose detection and extraction honor the
// configured column aliases and period year bounds. cfg may be nil for the
// defaults.
func NewWithConfig(st store.Store, cfg *config.Config) *Pipeline {
	p := &Pipeline{
		registry:  registry.New(),
		detector:  detect.NewDetector(nil, nil),
		extractor: extract.New(extract.Options{}),
		store:     st,
	}
	if cfg != nil {
		p.detector = detect.NewDetector(cfg.Aliases.Period, cfg.Aliases.Amount)
		p.extractor = extract.New(extract.Options{
			Aliases: extract.Aliases{
				ID:     cfg.Aliases.ID,
				Name:   cfg.Aliases.Name,
				Period: cfg.Aliases.Period,
				Amount: cfg.Aliases.Amount,
			},
			MinYear: cfg.Periods.MinYear,
			MaxYear: cfg.Periods.MaxYear,
		})
	}
	return p
}

// ProcessFile runs the full pipeline for one uploaded file.
func (p *Pipeline) ProcessFile(ctx context.Context, filePath, companyID string) (*Result, error) {
	if companyID == "" {
		return nil, fmt.Errorf("company ID cannot be empty")
	}

	rd, err := p.registry.FindReader(filePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	table, err := rd.Read(ctx, f, filePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s failed: %w", filepath.Base(filePath), err)
	}

	decision := p.detector.Detect(table.Headers())
	if decision.Shape.Terminal() {
		return nil, detect.NewDetectionError(decision)
	}

	entries, warnings, err := p.extractor.Extract(table, decision)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	warnings = append(append([]string{}, decision.Warnings...), warnings...)

	result := &Result{
		UploadID:    uuid.New().String(),
		CompanyID:   companyID,
		FileName:    filepath.Base(filePath),
		ProcessedAt: time.Now(),
		Decision:    decision,
		Entries:     entries,
		Warnings:    warnings,
	}

	if p.store == nil {
		result.Metrics = metrics.Compute(entries)
		return result, nil
	}

	if err := p.store.SaveEntries(ctx, companyID, entries); err != nil {
		return nil, fmt.Errorf("failed to persist ledger entries: %w", err)
	}

	// Metrics are computed over the whole stored ledger so that a partial
	// re-upload still yields a consistent series.
	history, err := p.store.LoadEntries(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger history: %w", err)
	}
	result.Metrics = metrics.Compute(history)

	if err := p.store.SaveMetrics(ctx, companyID, result.Metrics); err != nil {
		return nil, fmt.Errorf("failed to persist metrics: %w", err)
	}

	return result, nil
}

// ProcessFiles processes multiple uploads in order. Files that fail are
// logged and skipped; the returned results cover the files that succeeded.
// The each callback, if non-nil, is invoked after every attempt.
func (p *Pipeline) ProcessFiles(ctx context.Context, filePaths []string, companyID string, each func(path string, result *Result, err error)) ([]*Result, error) {
	results := make([]*Result, 0, len(filePaths))

	for _, filePath := range filePaths {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result, err := p.ProcessFile(ctx, filePath, companyID)
		if err != nil {
			log.Printf("ERROR: Failed to process file %s: %v", filepath.Base(filePath), err)
		} else {
			results = append(results, result)
		}
		if each != nil {
			each(filePath, result, err)
		}
	}

	return results, nil
}
