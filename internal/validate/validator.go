// Package validate is the strict ingestion path for already-tabular
// long-form uploads: every problem is addressable to a row and column, rows
// are accepted whole or not at all, and nothing is thrown. Errors and
// warnings are accumulated and reported in bulk.
package validate

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Severity distinguishes blocking problems from advisories.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// RowError is a structured, row-addressable validation finding. Row is the
// user-facing 1-indexed row number including the header row; header-level
// findings use row 0.
type RowError struct {
	Row      int      `json:"row"`
	Column   string   `json:"column"`
	Value    string   `json:"value"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Row is one accepted long-form observation. Period is normalized to
// YYYY-MM-01.
type Row struct {
	Line           int
	CustomerID     string
	CustomerName   string
	Period         string
	Amount         float64
	CustomerCount  *float64
	NewRevenue     *float64
	ExpansionRev   *float64
	ContractionRev *float64
	ChurnedRev     *float64
}

// Summary counts rows for UI display.
type Summary struct {
	TotalRows   int `json:"totalRows"`
	ValidRows   int `json:"validRows"`
	ErrorRows   int `json:"errorRows"`
	WarningRows int `json:"warningRows"`
}

// Result partitions an upload into accepted rows and findings.
type Result struct {
	Accepted []Row
	Errors   []RowError
	Warnings []RowError
	Summary  Summary
}

// Config controls which columns are mandatory and how hard the cross-field
// sanity check bites.
type Config struct {
	// RequiredColumns must all resolve to a header or the whole upload is
	// rejected with a header-level error. Defaults to period and amount.
	RequiredColumns []string
	// BreakdownRatioLimit flags rows whose summed revenue movements exceed
	// this multiple of the total amount. Defaults to 2.
	BreakdownRatioLimit float64
	// ExtraAliases appends accepted header spellings per logical column
	// (keys of columnAliases, e.g. "period", "amount"). Additions only; the
	// stock spellings always remain recognized. Unknown keys are ignored.
	ExtraAliases map[string][]string
}

// DefaultConfig returns the stock validator configuration.
func DefaultConfig() Config {
	return Config{
		RequiredColumns:     []string{"period", "amount"},
		BreakdownRatioLimit: 2,
	}
}

// columnAliases maps logical column names to accepted header spellings,
// checked case-insensitively in order.
var columnAliases = map[string][]string{
	"customerId":         {"customerid", "customer id", "customer_id", "id"},
	"customerName":       {"customername", "customer name", "customer_name", "name"},
	"period":             {"period", "month", "date"},
	"amount":             {"amount", "totalrevenue", "mrr", "revenue"},
	"customerCount":      {"customercount", "customer count", "customers"},
	"newRevenue":         {"newrevenue", "new revenue", "new"},
	"expansionRevenue":   {"expansionrevenue", "expansion revenue", "expansion"},
	"contractionRevenue": {"contractionrevenue", "contraction revenue", "contraction"},
	"churnedRevenue":     {"churnedrevenue", "churned revenue", "churned", "churn"},
}

// acceptedPeriodLayouts are the period shapes this strict path accepts, tried
// in order. All normalize to the first day of the month.
var acceptedPeriodLayouts = []string{"2006-01", "2006-01-02", "01/2006", "01/02/2006"}

// Validate parses rawText as CSV and partitions its rows. It never returns an
// error: structural problems surface as row-0 findings in the result.
func Validate(rawText string, cfg Config) *Result {
	if len(cfg.RequiredColumns) == 0 {
		cfg.RequiredColumns = DefaultConfig().RequiredColumns
	}
	if cfg.BreakdownRatioLimit <= 0 {
		cfg.BreakdownRatioLimit = DefaultConfig().BreakdownRatioLimit
	}

	result := &Result{
		Accepted: []Row{},
		Errors:   []RowError{},
		Warnings: []RowError{},
	}

	r := csv.NewReader(strings.NewReader(rawText))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, RowError{
			Row: 0, Message: fmt.Sprintf("could not parse CSV: %v", err), Severity: SeverityError,
		})
		return result
	}
	if len(records) == 0 {
		result.Errors = append(result.Errors, RowError{
			Row: 0, Message: "file is empty", Severity: SeverityError,
		})
		return result
	}

	headers := records[0]
	columns := resolveColumns(headers, cfg.ExtraAliases)

	missing := false
	for _, required := range cfg.RequiredColumns {
		if _, ok := columns[required]; !ok {
			result.Errors = append(result.Errors, RowError{
				Row: 0, Column: required,
				Message:  fmt.Sprintf("required column %q not found in header", required),
				Severity: SeverityError,
			})
			missing = true
		}
	}
	if missing {
		result.Summary.TotalRows = len(records) - 1
		result.Summary.ErrorRows = len(records) - 1
		return result
	}

	for i, record := range records[1:] {
		line := i + 2 // 1-indexed plus header row
		row, errs, warns := validateRow(record, columns, line, cfg)

		result.Warnings = append(result.Warnings, warns...)
		if len(warns) > 0 {
			result.Summary.WarningRows++
		}
		if len(errs) > 0 {
			// Any error excludes the whole row; partial acceptance is
			// never done.
			result.Errors = append(result.Errors, errs...)
			result.Summary.ErrorRows++
			continue
		}
		result.Accepted = append(result.Accepted, *row)
		result.Summary.ValidRows++
	}
	result.Summary.TotalRows = len(records) - 1

	return result
}

// validateRow checks one record and either yields an accepted row or the
// findings that rejected it.
func validateRow(record []string, columns map[string]int, line int, cfg Config) (*Row, []RowError, []RowError) {
	var errs, warns []RowError

	cell := func(logical string) (string, bool) {
		idx, ok := columns[logical]
		if !ok || idx >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[idx]), true
	}

	row := &Row{Line: line}
	row.CustomerID, _ = cell("customerId")
	row.CustomerName, _ = cell("customerName")

	periodValue, _ := cell("period")
	normalized, err := normalizePeriod(periodValue)
	if err != nil {
		errs = append(errs, RowError{
			Row: line, Column: "period", Value: periodValue,
			Message:  "period must be YYYY-MM, YYYY-MM-DD, MM/YYYY, or MM/DD/YYYY",
			Severity: SeverityError,
		})
	}
	row.Period = normalized

	amountValue, _ := cell("amount")
	amount, amountErr := parseNonNegative(amountValue)
	if amountErr != nil {
		errs = append(errs, RowError{
			Row: line, Column: "amount", Value: amountValue,
			Message: amountErr.Error(), Severity: SeverityError,
		})
	}
	row.Amount = amount

	if value, ok := cell("customerCount"); ok && value != "" {
		count, err := parseNonNegative(value)
		if err != nil {
			errs = append(errs, RowError{
				Row: line, Column: "customerCount", Value: value,
				Message: err.Error(), Severity: SeverityError,
			})
		} else {
			if count != math.Trunc(count) {
				warns = append(warns, RowError{
					Row: line, Column: "customerCount", Value: value,
					Message: "customer count is not a whole number", Severity: SeverityWarning,
				})
			}
			row.CustomerCount = &count
		}
	}

	breakdown := []struct {
		logical string
		target  **float64
	}{
		{"newRevenue", &row.NewRevenue},
		{"expansionRevenue", &row.ExpansionRev},
		{"contractionRevenue", &row.ContractionRev},
		{"churnedRevenue", &row.ChurnedRev},
	}
	for _, b := range breakdown {
		logical, target := b.logical, b.target
		value, ok := cell(logical)
		if !ok || value == "" {
			continue
		}
		parsed, err := parseNonNegative(value)
		if err != nil {
			errs = append(errs, RowError{
				Row: line, Column: logical, Value: value,
				Message: err.Error(), Severity: SeverityError,
			})
			continue
		}
		*target = &parsed
	}

	// Cross-field sanity: when the full breakdown is present, a net effect
	// far beyond the total usually means a unit or scale mistake. A zero
	// total with nonzero net movements is the same mistake, so the check
	// does not require a positive amount. Warning only; it never blocks
	// ingestion.
	if len(errs) == 0 && row.NewRevenue != nil && row.ExpansionRev != nil &&
		row.ContractionRev != nil && row.ChurnedRev != nil {
		net := math.Abs(*row.NewRevenue + *row.ExpansionRev - *row.ContractionRev - *row.ChurnedRev)
		if net > cfg.BreakdownRatioLimit*row.Amount {
			warns = append(warns, RowError{
				Row: line, Column: "amount",
				Value:    fmt.Sprintf("%.2f", net),
				Message:  fmt.Sprintf("revenue movements net to %.2f, more than %.0fx the total amount", net, cfg.BreakdownRatioLimit),
				Severity: SeverityWarning,
			})
		}
	}

	if len(errs) > 0 {
		return nil, errs, warns
	}
	return row, nil, warns
}

// resolveColumns maps logical column names to header indices via the alias
// table plus any configured extras; first matching alias wins.
func resolveColumns(headers []string, extra map[string][]string) map[string]int {
	resolved := make(map[string]int)
	for logical, aliases := range columnAliases {
		aliases = append(append([]string{}, aliases...), extra[logical]...)
		for _, alias := range aliases {
			for i, h := range headers {
				if strings.EqualFold(strings.TrimSpace(h), alias) {
					resolved[logical] = i
					break
				}
			}
			if _, ok := resolved[logical]; ok {
				break
			}
		}
	}
	return resolved
}

// normalizePeriod parses the accepted period shapes into YYYY-MM-01.
func normalizePeriod(value string) (string, error) {
	for _, layout := range acceptedPeriodLayouts {
		if d, err := time.Parse(layout, value); err == nil {
			return fmt.Sprintf("%04d-%02d-01", d.Year(), int(d.Month())), nil
		}
	}
	return "", fmt.Errorf("unrecognized period %q", value)
}

// parseNonNegative coerces a numeric cell, rejecting negatives and NaN.
func parseNonNegative(value string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.Trim(strings.TrimSpace(value), "$€£"), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("value is required")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not a number", value)
	}
	if v < 0 {
		return 0, fmt.Errorf("value %q must not be negative", value)
	}
	return v, nil
}
