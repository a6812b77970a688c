// Package detect classifies the layout of an uploaded revenue table from its
// header row alone: long (one row per customer-month) versus wide (one column
// per month), with a confidence score and accumulated warnings.
package detect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
	"github.com/DerkJan1/saasgrid-mvp/internal/period"
)

// identityPattern matches headers that plausibly hold customer identity.
var identityPattern = regexp.MustCompile(`(?i)(name|customer|client|company|\bid\b|^id$|_id$)`)

// looseDatePattern matches date-ish header shapes the strict grammar misses,
// e.g. "1/24" or "2024.01". Used only by the reduced-confidence fallback.
var looseDatePattern = regexp.MustCompile(`(?i)^(\d{1,2}[/.\-]\d{2,4}|\d{4}[/.\-]\d{1,2}|(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*[\s/.\-]?\d{0,4})$`)

// Long-format indicator headers, compared after normalization (lowercase,
// non-alphanumerics stripped). A long signal needs both a period-ish header
// and an amount-ish header; identity headers alone are common to both shapes.
var (
	longPeriodHeaders = map[string]struct{}{
		"month": {}, "date": {}, "period": {},
	}
	longAmountHeaders = map[string]struct{}{
		"mrr": {}, "revenue": {}, "amount": {}, "arr": {},
	}
)

const (
	// minWidePeriodColumns is how many recognized period columns it takes to
	// call a table wide with confidence.
	minWidePeriodColumns = 3
	// maxConfidence caps the wide-detection confidence score.
	maxConfidence = 0.9
	// fallbackMaxConfidence caps the loose-shape fallback so it is always
	// distinguishable from a confident detection.
	fallbackMaxConfidence = 0.8
	// serialSpanMinMonths and serialSpanMaxMonths bound the chronological
	// span a run of serial-number headers must cover to be trusted as months.
	serialSpanMinMonths = 2
	serialSpanMaxMonths = 60
)

// Detector classifies table layouts, optionally recognizing additional
// long-format header spellings from configuration. Stateless; safe for
// concurrent use.
type Detector struct {
	periodHeaders map[string]struct{}
	amountHeaders map[string]struct{}
}

// NewDetector creates a detector whose long-format signal also accepts the
// given extra period and amount header spellings. The built-in spellings
// always remain recognized.
func NewDetector(extraPeriod, extraAmount []string) *Detector {
	d := &Detector{
		periodHeaders: make(map[string]struct{}, len(longPeriodHeaders)+len(extraPeriod)),
		amountHeaders: make(map[string]struct{}, len(longAmountHeaders)+len(extraAmount)),
	}
	for h := range longPeriodHeaders {
		d.periodHeaders[h] = struct{}{}
	}
	for h := range longAmountHeaders {
		d.amountHeaders[h] = struct{}{}
	}
	for _, h := range extraPeriod {
		d.periodHeaders[normalizeHeader(h)] = struct{}{}
	}
	for _, h := range extraAmount {
		d.amountHeaders[normalizeHeader(h)] = struct{}{}
	}
	return d
}

var defaultDetector = NewDetector(nil, nil)

// Detect classifies a table shape using only the built-in header spellings.
func Detect(headers []string) domain.FormatDecision {
	return defaultDetector.Detect(headers)
}

// Detect inspects raw header cells and classifies the table shape. It has no
// side effects; all data-quality observations are returned as warnings on the
// decision.
func (d *Detector) Detect(headers []string) domain.FormatDecision {
	decision := domain.FormatDecision{
		Shape:    domain.ShapeUnknown,
		Warnings: []string{},
	}

	trimmed := make([]string, 0, len(headers))
	for _, h := range headers {
		if t := strings.TrimSpace(h); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	if len(trimmed) < 2 {
		decision.Warnings = append(decision.Warnings,
			fmt.Sprintf("only %d non-empty header(s); need at least 2 columns", len(trimmed)))
		return decision
	}

	decision.IdentityColumns = identityColumns(trimmed, &decision)
	identity := make(map[string]struct{}, len(decision.IdentityColumns))
	for _, h := range decision.IdentityColumns {
		identity[h] = struct{}{}
	}

	// Period columns from the strict token grammar.
	for _, h := range trimmed {
		if _, isID := identity[h]; isID {
			continue
		}
		if period.LooksLikePeriod(h) {
			decision.PeriodColumns = append(decision.PeriodColumns, h)
		}
	}

	// Serial-number headers form period columns only as a plausible run:
	// three or more, chronological, spanning 2-60 months once converted.
	decision.PeriodColumns = append(decision.PeriodColumns,
		serialPeriodColumns(trimmed, decision.PeriodColumns, identity, &decision)...)

	wideSignal := len(decision.PeriodColumns) >= minWidePeriodColumns
	longSignal := d.hasLongSignal(trimmed)

	switch {
	case wideSignal && longSignal:
		decision.Shape = domain.ShapeHybrid
		decision.Warnings = append(decision.Warnings,
			"headers mix long-format columns with per-month columns; pick one layout")
	case wideSignal:
		decision.Shape = domain.ShapeWide
		decision.Confidence = min(maxConfidence,
			float64(len(decision.PeriodColumns))/float64(len(trimmed)))
	case longSignal:
		decision.Shape = domain.ShapeLong
		decision.Confidence = 0.95
	default:
		looseShape(trimmed, identity, &decision)
	}

	return decision
}

// identityColumns finds headers holding customer identity among the first
// three columns. When none match, the first column is assumed to hold
// identity; a permissive default for headerless exports, noted as a warning.
func identityColumns(headers []string, decision *domain.FormatDecision) []string {
	var found []string
	limit := len(headers)
	if limit > 3 {
		limit = 3
	}
	for _, h := range headers[:limit] {
		if identityPattern.MatchString(h) && !period.LooksLikePeriod(h) {
			found = append(found, h)
		}
	}
	if len(found) == 0 {
		decision.Warnings = append(decision.Warnings,
			fmt.Sprintf("no identity header recognized; assuming first column %q holds customer identity", headers[0]))
		found = []string{headers[0]}
	}
	return found
}

// serialPeriodColumns returns headers that are spreadsheet date serials
// forming a plausible chronological month run.
func serialPeriodColumns(headers, alreadyMatched []string, identity map[string]struct{}, decision *domain.FormatDecision) []string {
	matched := make(map[string]struct{}, len(alreadyMatched))
	for _, h := range alreadyMatched {
		matched[h] = struct{}{}
	}

	var serialHeaders []string
	var months []int
	for _, h := range headers {
		if _, ok := matched[h]; ok {
			continue
		}
		if _, ok := identity[h]; ok {
			continue
		}
		n, err := strconv.Atoi(h)
		if err != nil || !period.PlausibleSerial(n) {
			continue
		}
		canonical, _ := period.FromSerial(n)
		serialHeaders = append(serialHeaders, h)
		months = append(months, monthIndex(canonical))
	}

	if len(serialHeaders) < minWidePeriodColumns {
		return nil
	}
	for i := 1; i < len(months); i++ {
		if months[i] < months[i-1] {
			return nil
		}
	}
	span := months[len(months)-1] - months[0] + 1
	if span < serialSpanMinMonths || span > serialSpanMaxMonths {
		return nil
	}

	decision.Warnings = append(decision.Warnings,
		fmt.Sprintf("%d header(s) look like spreadsheet date serials; treating them as months", len(serialHeaders)))
	return serialHeaders
}

// hasLongSignal reports whether the headers carry long-format indicators:
// a period-ish column name plus an amount-ish column name.
func (d *Detector) hasLongSignal(headers []string) bool {
	var hasPeriod, hasAmount bool
	for _, h := range headers {
		key := normalizeHeader(h)
		if _, ok := d.periodHeaders[key]; ok {
			hasPeriod = true
		}
		if _, ok := d.amountHeaders[key]; ok {
			hasAmount = true
		}
	}
	return hasPeriod && hasAmount
}

// looseShape is the fallback for low-signal headers: when a majority of the
// non-identity headers match loose date-like shapes, reclassify as wide with
// reduced confidence. Exists to tolerate exotic spreadsheet exports.
func looseShape(headers []string, identity map[string]struct{}, decision *domain.FormatDecision) {
	var candidates, loose int
	var looseHeaders []string
	for _, h := range headers {
		if _, ok := identity[h]; ok {
			continue
		}
		candidates++
		if looseDatePattern.MatchString(h) {
			loose++
			looseHeaders = append(looseHeaders, h)
		}
	}

	if loose >= 2 && candidates > 0 && loose*2 > candidates {
		decision.Shape = domain.ShapeWide
		decision.PeriodColumns = looseHeaders
		decision.Confidence = min(fallbackMaxConfidence, float64(loose)/float64(len(headers)))
		decision.Warnings = append(decision.Warnings,
			"column headers only loosely resemble months; detection confidence reduced")
		return
	}

	decision.Shape = domain.ShapeUnknown
	decision.Warnings = append(decision.Warnings,
		"could not recognize a long or wide revenue layout from the headers")
}

// normalizeHeader lowercases a header and strips non-alphanumeric runes so
// "Customer ID", "customer_id" and "customerId" compare equal.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// monthIndex converts a canonical YYYY-MM period to a comparable month count.
func monthIndex(canonical string) int {
	year, _ := strconv.Atoi(canonical[:4])
	month, _ := strconv.Atoi(canonical[5:])
	return year*12 + month - 1
}
