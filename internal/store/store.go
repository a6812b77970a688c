// Package store persists ledger entries and computed metrics keyed by
// company and period. Writes are upserts on that composite key, so repeated
// uploads of the same period are idempotent: last write wins. Store errors
// are opaque to the ingestion core, whose contract ends at producing values.
package store

import (
	"context"
	"sort"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

// Store is the durable home of the revenue ledger and its derived metrics.
type Store interface {
	// SaveEntries replaces the company's ledger rows for every period
	// present in entries. Periods not mentioned are left untouched.
	SaveEntries(ctx context.Context, companyID string, entries []domain.LedgerEntry) error

	// SaveMetrics upserts the company's metrics, one document per period.
	SaveMetrics(ctx context.Context, companyID string, metrics []domain.MonthlyMetrics) error

	// LoadEntries returns the company's full ledger ordered by period then
	// customer id.
	LoadEntries(ctx context.Context, companyID string) ([]domain.LedgerEntry, error)

	// Close releases the underlying resources.
	Close() error
}

// distinctPeriods returns the sorted unique periods in the entries.
func distinctPeriods(entries []domain.LedgerEntry) []string {
	seen := make(map[string]struct{})
	var periods []string
	for _, e := range entries {
		if _, ok := seen[e.Period]; !ok {
			seen[e.Period] = struct{}{}
			periods = append(periods, e.Period)
		}
	}
	sort.Strings(periods)
	return periods
}
