package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/DerkJan1/saasgrid-mvp/internal/detect"
	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
	"github.com/DerkJan1/saasgrid-mvp/internal/reader"
)

func mustTable(t *testing.T, headers []string, rows [][]string) *reader.RawTable {
	t.Helper()
	table, err := reader.NewRawTable(headers, rows)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	return table
}

func TestExtract_WideBasic(t *testing.T) {
	table := mustTable(t,
		[]string{"Customer Name", "2024-01", "2024-02", "2024-03"},
		[][]string{
			{"Acme Corp", "100", "110", "120"},
			{"Globex", "50", "0", "60"},
		})
	decision := detect.Detect(table.Headers())

	entries, warnings, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v (warnings: %v)", err, warnings)
	}
	if len(entries) != 6 {
		t.Fatalf("got %d entries; want 6", len(entries))
	}

	// Explicit 0 is a valid zero-revenue entry, not a gap.
	var foundZero bool
	for _, e := range entries {
		if e.CustomerID == "globex" && e.Period == "2024-02" {
			foundZero = true
			if e.Amount != 0 {
				t.Errorf("globex 2024-02 amount = %f; want 0", e.Amount)
			}
		}
	}
	if !foundZero {
		t.Error("explicit 0 cell should produce a zero-amount entry")
	}
}

// A customer row with cells [100, "", 120] across three sorted period columns
// produces exactly two entries, not three and not a zero for the gap.
func TestExtract_WideEmptyCellIsChurnSignal(t *testing.T) {
	table := mustTable(t,
		[]string{"Customer", "2024-01", "2024-02", "2024-03"},
		[][]string{{"Acme", "100", "", "120"}})
	decision := detect.Detect(table.Headers())

	entries, _, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2", len(entries))
	}
	if entries[0].Period != "2024-01" || entries[1].Period != "2024-03" {
		t.Errorf("periods = %s, %s; want 2024-01, 2024-03", entries[0].Period, entries[1].Period)
	}
}

func TestExtract_WideSentinelsAndNegatives(t *testing.T) {
	table := mustTable(t,
		[]string{"Customer", "2024-01", "2024-02", "2024-03", "2024-04", "2024-05"},
		[][]string{{"Acme", "N/A", "NULL", "-", "-50", "oops"}})
	decision := detect.Detect(table.Headers())

	entries, warnings, err := Extract(table, decision)
	var dfe *DataFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("expected *DataFormatError for all-skipped row, got %v (%d entries)", err, len(entries))
	}
	if len(dfe.Suggestions) == 0 {
		t.Error("DataFormatError should carry suggestions")
	}

	// The negative amount specifically should have been warned about.
	var negWarned bool
	for _, w := range warnings {
		if strings.Contains(w, "negative") {
			negWarned = true
		}
	}
	if !negWarned {
		t.Errorf("expected a negative-amount warning, got %v", warnings)
	}
}

func TestExtract_WidePeriodColumnsSorted(t *testing.T) {
	// Header order is shuffled; entries must come out chronologically per row.
	table := mustTable(t,
		[]string{"Customer", "2024-03", "2024-01", "2024-02"},
		[][]string{{"Acme", "300", "100", "200"}})
	decision := detect.Detect(table.Headers())

	entries, _, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	periods := []string{entries[0].Period, entries[1].Period, entries[2].Period}
	if !reflect.DeepEqual(periods, []string{"2024-01", "2024-02", "2024-03"}) {
		t.Errorf("periods = %v; want ascending order", periods)
	}
	if entries[0].Amount != 100 || entries[2].Amount != 300 {
		t.Errorf("amounts did not follow their columns: %+v", entries)
	}
}

func TestExtract_WideIDCollisions(t *testing.T) {
	table := mustTable(t,
		[]string{"Customer", "2024-01", "2024-02", "2024-03"},
		[][]string{
			{"Acme Corp", "100", "110", "120"},
			{"Acme Corp", "10", "20", "30"},
		})
	decision := detect.Detect(table.Headers())

	run := func() []domain.LedgerEntry {
		entries, _, err := Extract(table, decision)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		return entries
	}

	entries := run()
	if entries[0].CustomerID != "acme_corp" || entries[3].CustomerID != "acme_corp_1" {
		t.Errorf("ids = %q, %q; want acme_corp, acme_corp_1 in row order",
			entries[0].CustomerID, entries[3].CustomerID)
	}

	// Extracting the same table twice yields identical sequences.
	if !reflect.DeepEqual(entries, run()) {
		t.Error("repeated extraction produced a different ledger")
	}
}

func TestExtract_WideHeaderFallbackReinterpretation(t *testing.T) {
	// "24/01"-style headers fail strict normalization; the fallback reads
	// them as 2024-01 with a warning.
	table := mustTable(t,
		[]string{"Customer", "24/01", "24/02", "24/03"},
		[][]string{{"Acme", "100", "110", "120"}})
	decision := domain.FormatDecision{
		Shape:           domain.ShapeWide,
		PeriodColumns:   []string{"24/01", "24/02", "24/03"},
		IdentityColumns: []string{"Customer"},
	}

	entries, warnings, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v (warnings %v)", err, warnings)
	}
	if len(entries) != 3 || entries[0].Period != "2024-01" {
		t.Errorf("entries = %+v; want three periods starting 2024-01", entries)
	}
	if len(warnings) == 0 {
		t.Error("best-effort header reinterpretation must be warned about")
	}
}

func TestExtract_Long(t *testing.T) {
	table := mustTable(t,
		[]string{"customerId", "customerName", "month", "mrr"},
		[][]string{
			{"c1", "Acme", "2024-01", "100"},
			{"c1", "Acme", "2024-02", "110"},
			{"c2", "Globex", "2024-01", "200"},
			{"", "", "2024-01", "300"},        // no identity: skipped
			{"c3", "Initech", "", "50"},       // no period: skipped
			{"c4", "Umbrella", "2024-01", ""}, // no amount: skipped
			{"c5", "Hooli", "2024-01", "abc"}, // bad amount: skipped
		})
	decision := detect.Detect(table.Headers())

	entries, _, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries; want 3 (bad rows silently skipped)", len(entries))
	}
}

func TestExtract_LongDerivedIDsStablePerName(t *testing.T) {
	// Without an id column the same name across rows is the same customer.
	table := mustTable(t,
		[]string{"name", "month", "revenue"},
		[][]string{
			{"Acme Corp", "2024-01", "100"},
			{"Acme Corp", "2024-02", "110"},
		})
	decision := detect.Detect(table.Headers())

	entries, _, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2", len(entries))
	}
	if entries[0].CustomerID != "acme_corp" || entries[1].CustomerID != "acme_corp" {
		t.Errorf("ids = %q, %q; want the same derived id", entries[0].CustomerID, entries[1].CustomerID)
	}
}

func TestExtract_DuplicateEntriesMergedLastWins(t *testing.T) {
	table := mustTable(t,
		[]string{"customerId", "month", "mrr"},
		[][]string{
			{"c1", "2024-01", "100"},
			{"c1", "2024-01", "150"},
		})
	decision := detect.Detect(table.Headers())

	entries, warnings, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries; want 1 merged entry", len(entries))
	}
	if entries[0].Amount != 150 {
		t.Errorf("amount = %f; want the later value 150", entries[0].Amount)
	}
	if len(warnings) == 0 {
		t.Error("duplicate merge must be warned about, never silent")
	}
}

func TestExtract_TerminalShapesRejected(t *testing.T) {
	table := mustTable(t, []string{"a", "b"}, nil)
	for _, shape := range []domain.TableShape{domain.ShapeHybrid, domain.ShapeUnknown} {
		if _, _, err := Extract(table, domain.FormatDecision{Shape: shape}); err == nil {
			t.Errorf("Extract with %s shape should fail", shape)
		}
	}
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		cell     string
		expected float64
		ok       bool
	}{
		{"100", 100, true},
		{"1,500.25", 1500.25, true},
		{"$2,000", 2000, true},
		{"0", 0, true},
		{"-50", -50, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
	}

	for _, tt := range tests {
		got, ok := coerceAmount(tt.cell)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("coerceAmount(%q) = (%f, %v); want (%f, %v)",
				tt.cell, got, ok, tt.expected, tt.ok)
		}
	}
}

// A long table whose only identity header is "customer" resolves no alias,
// but the detector's identity columns still locate it.
func TestExtract_LongIdentityFromDecision(t *testing.T) {
	table := mustTable(t,
		[]string{"customer", "month", "mrr"},
		[][]string{
			{"Acme", "2024-01", "100"},
			{"Acme", "2024-02", "110"},
			{"Globex", "2024-01", "50"},
		})
	decision := detect.Detect(table.Headers())
	if decision.Shape != domain.ShapeLong {
		t.Fatalf("shape = %s; want long", decision.Shape)
	}

	entries, warnings, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v (warnings: %v)", err, warnings)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries; want 3", len(entries))
	}
	if entries[0].CustomerID != "acme" || entries[2].CustomerID != "globex" {
		t.Errorf("derived ids = %s, %s; want acme, globex", entries[0].CustomerID, entries[2].CustomerID)
	}
}

func TestExtract_ConfiguredAliases(t *testing.T) {
	table := mustTable(t,
		[]string{"customer", "close_month", "booked"},
		[][]string{
			{"Acme", "2024-01", "100"},
			{"Globex", "2024-01", "50"},
		})
	d := detect.NewDetector([]string{"close_month"}, []string{"booked"})
	decision := d.Detect(table.Headers())
	if decision.Shape != domain.ShapeLong {
		t.Fatalf("shape = %s; want long", decision.Shape)
	}

	x := New(Options{Aliases: Aliases{Period: []string{"close_month"}, Amount: []string{"booked"}}})
	entries, warnings, err := x.Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v (warnings: %v)", err, warnings)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2", len(entries))
	}
	if entries[0].Period != "2024-01" || entries[0].Amount != 100 {
		t.Errorf("entry = %+v; want 2024-01 / 100", entries[0])
	}
}

// Header cells carrying surrounding whitespace still resolve to their column.
func TestExtract_WideHeaderWhitespaceTolerated(t *testing.T) {
	table := mustTable(t,
		[]string{"Customer", "2024-01", " 2024-02 ", "2024-03"},
		[][]string{{"Acme", "100", "110", "120"}})
	decision := detect.Detect(table.Headers())

	entries, warnings, err := Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v (warnings: %v)", err, warnings)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries; want 3 (whitespace header column must not be dropped)", len(entries))
	}
	if entries[1].Period != "2024-02" {
		t.Errorf("middle period = %s; want 2024-02", entries[1].Period)
	}
}

func TestExtract_ConfiguredYearBounds(t *testing.T) {
	table := mustTable(t,
		[]string{"Customer", "2031-01", "2031-02", "2031-03"},
		[][]string{{"Acme", "100", "110", "120"}})
	decision := detect.Detect(table.Headers())

	x := New(Options{MinYear: 2000, MaxYear: 2030})
	entries, warnings, err := x.Extract(table, decision)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries; want 3 (unusual years extract with a warning)", len(entries))
	}
	var warned bool
	for _, w := range warnings {
		if strings.Contains(w, "unusual year") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("expected an unusual-year warning, got %v", warnings)
	}
}
