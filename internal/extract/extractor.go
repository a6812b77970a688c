// Package extract walks a classified raw table and emits the flat
// per-customer per-month revenue ledger, assigning every record a canonical
// (customerId, period) identity with deterministic conflict resolution.
package extract

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
	"github.com/DerkJan1/saasgrid-mvp/internal/period"
	"github.com/DerkJan1/saasgrid-mvp/internal/reader"
)

// DataFormatError means extraction produced zero usable ledger entries.
// Fatal to the upload; carries remediation suggestions per target format.
type DataFormatError struct {
	Suggestions []string
}

func (e *DataFormatError) Error() string {
	return "no valid revenue records could be extracted from the file"
}

// Built-in column aliases for the long-format path, in priority order; the
// first header present wins. Compared case-insensitively after trimming.
var (
	idAliases     = []string{"customerid", "customer id", "customer_id", "id"}
	nameAliases   = []string{"customername", "customer name", "customer_name", "name"}
	periodAliases = []string{"month", "date", "period"}
	amountAliases = []string{"mrr", "revenue", "amount", "arr"}
)

// Default year bounds for the unusual-year warning.
const (
	defaultMinYear = 1990
	defaultMaxYear = 2099
)

// emptySentinels are cell values meaning "no revenue this period". They are
// the churn signal and must never be read as zero revenue; an explicit 0 is a
// valid zero-revenue entry.
var emptySentinels = map[string]struct{}{
	"": {}, "N/A": {}, "NULL": {}, "-": {},
}

// headerFallbackPattern recognizes <num>/<num> tokens for the best-effort
// header reinterpretation as 20<num>-<num>.
var headerFallbackPattern = regexp.MustCompile(`^(\d{2})[/-](\d{1,2})$`)

// Aliases extends the built-in header spellings per logical column.
type Aliases struct {
	ID     []string
	Name   []string
	Period []string
	Amount []string
}

// Options customizes an Extractor. The zero value means built-in aliases and
// default year bounds.
type Options struct {
	Aliases Aliases
	// MinYear and MaxYear bound the years considered usual; periods outside
	// them are extracted with a warning. Both zero means the defaults.
	MinYear int
	MaxYear int
}

// Extractor converts classified raw tables into ledger entries. Stateless
// across calls; safe for concurrent use.
type Extractor struct {
	idAliases     []string
	nameAliases   []string
	periodAliases []string
	amountAliases []string
	minYear       int
	maxYear       int
}

// New creates an extractor. Configured aliases extend the built-in lists,
// they never replace them.
func New(opts Options) *Extractor {
	x := &Extractor{
		idAliases:     append(append([]string{}, idAliases...), opts.Aliases.ID...),
		nameAliases:   append(append([]string{}, nameAliases...), opts.Aliases.Name...),
		periodAliases: append(append([]string{}, periodAliases...), opts.Aliases.Period...),
		amountAliases: append(append([]string{}, amountAliases...), opts.Aliases.Amount...),
		minYear:       opts.MinYear,
		maxYear:       opts.MaxYear,
	}
	if x.minYear == 0 && x.maxYear == 0 {
		x.minYear, x.maxYear = defaultMinYear, defaultMaxYear
	}
	return x
}

var defaultExtractor = New(Options{})

// Extract converts a raw table using the built-in aliases and year bounds.
func Extract(table *reader.RawTable, decision domain.FormatDecision) ([]domain.LedgerEntry, []string, error) {
	return defaultExtractor.Extract(table, decision)
}

// Extract converts a raw table into ledger entries following the detector's
// decision. It returns the entries, data-quality warnings, and an error when
// the decision is a rejected shape or no entries result.
//
// Extraction is deterministic: the same table and decision always produce a
// byte-identical entry sequence, including generated customer ids.
func (x *Extractor) Extract(table *reader.RawTable, decision domain.FormatDecision) ([]domain.LedgerEntry, []string, error) {
	if decision.Shape.Terminal() {
		return nil, nil, fmt.Errorf("cannot extract from a %s-shaped table", decision.Shape)
	}

	var entries []domain.LedgerEntry
	var warnings []string

	switch decision.Shape {
	case domain.ShapeLong:
		entries, warnings = x.extractLong(table, decision)
	case domain.ShapeWide:
		entries, warnings = x.extractWide(table, decision)
	}

	if len(entries) == 0 {
		return nil, warnings, &DataFormatError{Suggestions: []string{
			"long format: include columns customerId (or customerName), month, and mrr",
			"wide format: first column holds customer names, remaining columns are month headers",
			"check that amount cells contain plain numbers",
		}}
	}
	return entries, warnings, nil
}

// extractLong handles one-row-per-observation tables. Rows missing a required
// field or failing numeric coercion are skipped, not fatal; callers that need
// per-row error reporting use the validate package instead. Identity comes
// from the alias lists first and falls back to the detector's identity
// columns, so a table headed "customer" still extracts.
func (x *Extractor) extractLong(table *reader.RawTable, decision domain.FormatDecision) ([]domain.LedgerEntry, []string) {
	idCol := resolveColumn(table, x.idAliases)
	nameCol := resolveColumn(table, x.nameAliases)
	if idCol < 0 && nameCol < 0 {
		idCol, nameCol = x.identityColumns(table, decision.IdentityColumns)
	}
	periodCol := resolveColumn(table, x.periodAliases)
	amountCol := resolveColumn(table, x.amountAliases)

	var warnings []string
	gen := NewIDGenerator()
	nameIDs := map[string]string{} // long rows repeat customers; same name, same id
	index := map[string]int{}      // (customerId|period) -> entry position
	var entries []domain.LedgerEntry

	for _, row := range table.Rows() {
		id := table.Cell(row, idCol)
		name := table.Cell(row, nameCol)
		if id == "" && name == "" {
			continue
		}
		if id == "" {
			derived, seen := nameIDs[name]
			if !seen {
				derived = gen.Derive(name)
				nameIDs[name] = derived
			}
			id = derived
		} else {
			gen.Claim(id)
		}
		if name == "" {
			name = id
		}

		canonical, err := period.Normalize(table.Cell(row, periodCol))
		if err != nil {
			continue
		}
		if period.YearOutOfRange(canonical, x.minYear, x.maxYear) {
			warnings = append(warnings, fmt.Sprintf("period %s has an unusual year", canonical))
		}

		amount, ok := coerceAmount(table.Cell(row, amountCol))
		if !ok || amount < 0 {
			continue
		}

		entries = appendEntry(entries, index, &warnings, domain.LedgerEntry{
			CustomerID:   id,
			CustomerName: name,
			Period:       canonical,
			Amount:       amount,
		})
	}

	return entries, warnings
}

// periodColumn is a header column resolved to its canonical month.
type periodColumn struct {
	index     int
	canonical string
}

// extractWide handles one-column-per-month tables. Period columns are sorted
// chronologically first so the emitted ledger is in ascending period order
// per customer.
func (x *Extractor) extractWide(table *reader.RawTable, decision domain.FormatDecision) ([]domain.LedgerEntry, []string) {
	var warnings []string
	columns := x.resolvePeriodColumns(table, decision.PeriodColumns, &warnings)

	idCol, nameCol := x.identityColumns(table, decision.IdentityColumns)

	gen := NewIDGenerator()
	index := map[string]int{}
	var entries []domain.LedgerEntry

	for _, row := range table.Rows() {
		explicitID := table.Cell(row, idCol)
		name := table.Cell(row, nameCol)
		if explicitID == "" && name == "" {
			continue
		}
		id := explicitID
		if id == "" {
			id = gen.Derive(name)
		} else {
			gen.Claim(id)
		}
		if name == "" {
			name = id
		}

		for _, col := range columns {
			cell := table.Cell(row, col.index)
			if _, sentinel := emptySentinels[cell]; sentinel {
				continue // no revenue this period, distinct from explicit 0
			}
			amount, ok := coerceAmount(cell)
			if !ok {
				continue
			}
			if amount < 0 {
				warnings = append(warnings,
					fmt.Sprintf("negative amount %q for %s in %s skipped", cell, name, col.canonical))
				continue
			}
			entries = appendEntry(entries, index, &warnings, domain.LedgerEntry{
				CustomerID:   id,
				CustomerName: name,
				Period:       col.canonical,
				Amount:       amount,
			})
		}
	}

	return entries, warnings
}

// resolvePeriodColumns normalizes the detected period headers and sorts them
// chronologically. A header that fails normalization gets one best-effort
// reinterpretation (a <num>/<num> token read as 20<num>-<num>) before the
// column is skipped with a warning. The reinterpretation is pragmatic and can
// mask a genuine format error, which is why it is warned about even when it
// succeeds.
func (x *Extractor) resolvePeriodColumns(table *reader.RawTable, headers []string, warnings *[]string) []periodColumn {
	columns := make([]periodColumn, 0, len(headers))
	for _, h := range headers {
		idx := table.ColumnIndex(h)
		if idx < 0 {
			*warnings = append(*warnings, fmt.Sprintf("period header %q not found in the table; column skipped", h))
			continue
		}
		canonical, err := period.Normalize(h)
		if err != nil {
			canonical, err = reinterpretHeader(h)
			if err != nil {
				*warnings = append(*warnings, fmt.Sprintf("period header %q not understood; column skipped", h))
				continue
			}
			*warnings = append(*warnings, fmt.Sprintf("period header %q read as %s", h, canonical))
		}
		if period.YearOutOfRange(canonical, x.minYear, x.maxYear) {
			*warnings = append(*warnings, fmt.Sprintf("period %s has an unusual year", canonical))
		}
		columns = append(columns, periodColumn{index: idx, canonical: canonical})
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].canonical < columns[j].canonical
	})
	return columns
}

// reinterpretHeader retries a failed header as 20<num>-<num>.
func reinterpretHeader(h string) (string, error) {
	m := headerFallbackPattern.FindStringSubmatch(strings.TrimSpace(h))
	if m == nil {
		return "", &period.FormatError{Token: h}
	}
	return period.Normalize(fmt.Sprintf("20%s-%s", m[1], m[2]))
}

// identityColumns splits the detected identity columns into an explicit id
// column and a name column. Either may be absent (-1); with neither found the
// first column is assumed to hold the name.
func (x *Extractor) identityColumns(table *reader.RawTable, identityHeaders []string) (idCol, nameCol int) {
	idCol, nameCol = -1, -1
	for _, h := range identityHeaders {
		idx := table.ColumnIndex(h)
		if idx < 0 {
			continue
		}
		if idCol < 0 && matchesAlias(h, x.idAliases) {
			idCol = idx
			continue
		}
		if nameCol < 0 {
			nameCol = idx
		}
	}
	if idCol < 0 && nameCol < 0 && len(table.Headers()) > 0 {
		nameCol = 0
	}
	return idCol, nameCol
}

// appendEntry enforces the one-entry-per-(customer, period) invariant.
// Duplicates are merged last-write-wins with a warning; they are never
// silently summed.
func appendEntry(entries []domain.LedgerEntry, index map[string]int, warnings *[]string, e domain.LedgerEntry) []domain.LedgerEntry {
	key := e.CustomerID + "|" + e.Period
	if pos, dup := index[key]; dup {
		*warnings = append(*warnings,
			fmt.Sprintf("duplicate entry for customer %s in %s; keeping the later value", e.CustomerID, e.Period))
		entries[pos] = e
		return entries
	}
	index[key] = len(entries)
	return append(entries, e)
}

// resolveColumn returns the index of the first header matching any alias, in
// alias priority order, or -1.
func resolveColumn(table *reader.RawTable, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range table.Headers() {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i
			}
		}
	}
	return -1
}

// matchesAlias reports whether the header equals any alias, ignoring case.
func matchesAlias(h string, aliases []string) bool {
	for _, alias := range aliases {
		if strings.EqualFold(strings.TrimSpace(h), alias) {
			return true
		}
	}
	return false
}

// coerceAmount parses a cell as a monetary amount, tolerating currency
// symbols and thousands separators. NaN parses but is "no entry".
func coerceAmount(cell string) (float64, bool) {
	cleaned := strings.TrimSpace(cell)
	cleaned = strings.Trim(cleaned, "$€£ ")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
