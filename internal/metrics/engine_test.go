package metrics

import (
	"testing"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

func entry(id, period string, amount float64) domain.LedgerEntry {
	return domain.LedgerEntry{CustomerID: id, CustomerName: id, Period: period, Amount: amount}
}

func TestCompute_SinglePeriodBaseline(t *testing.T) {
	series := Compute([]domain.LedgerEntry{
		entry("acme", "2024-01", 100),
		entry("globex", "2024-01", 50),
	})

	if len(series) != 1 {
		t.Fatalf("got %d periods; want 1", len(series))
	}
	m := series[0]
	if m.TotalMRR != 150 || m.ARR != 1800 {
		t.Errorf("totalMRR = %f, arr = %f; want 150, 1800", m.TotalMRR, m.ARR)
	}
	if m.NewMRR != m.TotalMRR {
		t.Errorf("first period newMRR = %f; want totalMRR %f", m.NewMRR, m.TotalMRR)
	}
	if m.GrossRevenueRetention != 1 || m.NetRevenueRetention != 1 {
		t.Errorf("first period retention = %f/%f; want 1.0/1.0",
			m.GrossRevenueRetention, m.NetRevenueRetention)
	}
	if m.LogoChurnRate != 0 || m.ChurnedMRR != 0 || m.MagicNumber != 0 {
		t.Errorf("first period churn/magic = %f/%f/%f; want zeros",
			m.LogoChurnRate, m.ChurnedMRR, m.MagicNumber)
	}
	if m.CustomerCount != 2 {
		t.Errorf("customerCount = %d; want 2", m.CustomerCount)
	}
}

// Period A: {X: 100, Y: 50}. Period B: {X: 120, Z: 30}.
// Y churned, X expanded by 20, Z is new.
func TestCompute_RetentionArithmetic(t *testing.T) {
	series := Compute([]domain.LedgerEntry{
		entry("x", "2024-01", 100),
		entry("y", "2024-01", 50),
		entry("x", "2024-02", 120),
		entry("z", "2024-02", 30),
	})

	if len(series) != 2 {
		t.Fatalf("got %d periods; want 2", len(series))
	}
	b := series[1]

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"totalMRR", b.TotalMRR, 150},
		{"newMRR", b.NewMRR, 30},
		{"expansionMRR", b.ExpansionMRR, 20},
		{"contractionMRR", b.ContractionMRR, 0},
		{"churnedMRR", b.ChurnedMRR, 50},
		{"grossRevenueRetention", b.GrossRevenueRetention, 0.6667},
		{"netRevenueRetention", b.NetRevenueRetention, 0.8},
		{"logoChurnRate", b.LogoChurnRate, 0.5},
		{"magicNumber", b.MagicNumber, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v; want %v", c.name, c.got, c.want)
		}
	}
}

func TestCompute_ZeroBaseConvention(t *testing.T) {
	// A period following a zero-total month yields retention of exactly 1.0,
	// never NaN or Inf.
	series := Compute([]domain.LedgerEntry{
		entry("acme", "2024-01", 0),
		entry("acme", "2024-02", 100),
	})

	m := series[1]
	if m.GrossRevenueRetention != 1 || m.NetRevenueRetention != 1 {
		t.Errorf("retention after zero base = %f/%f; want 1.0/1.0",
			m.GrossRevenueRetention, m.NetRevenueRetention)
	}
	// The zero-amount prior entry means acme is treated as absent there.
	if m.NewMRR != 100 {
		t.Errorf("newMRR = %f; want 100 (0 -> 100 is new, not expansion)", m.NewMRR)
	}
}

func TestCompute_ContractionAndMagicNumber(t *testing.T) {
	series := Compute([]domain.LedgerEntry{
		entry("acme", "2024-01", 200),
		entry("acme", "2024-02", 150), // contraction of 50
		entry("globex", "2024-02", 25),
	})

	m := series[1]
	if m.ContractionMRR != 50 {
		t.Errorf("contractionMRR = %f; want 50", m.ContractionMRR)
	}
	// magic = (25 + 0) / (0 + 50) = 0.5
	if m.MagicNumber != 0.5 {
		t.Errorf("magicNumber = %f; want 0.5", m.MagicNumber)
	}
}

func TestCompute_MagicNumberSentinel(t *testing.T) {
	// Gains with zero losses report the ceiling, not infinity.
	series := Compute([]domain.LedgerEntry{
		entry("acme", "2024-01", 100),
		entry("acme", "2024-02", 100),
		entry("globex", "2024-02", 50),
	})

	if got := series[1].MagicNumber; got != 5 {
		t.Errorf("magicNumber = %f; want ceiling 5", got)
	}
}

func TestCompute_NonAdjacentPeriodsCompared(t *testing.T) {
	// The predecessor is the previous distinct period in the sequence, not
	// the calendar-adjacent month.
	series := Compute([]domain.LedgerEntry{
		entry("acme", "2024-01", 100),
		entry("acme", "2024-06", 80),
	})

	if len(series) != 2 {
		t.Fatalf("got %d periods; want 2", len(series))
	}
	if series[1].ContractionMRR != 20 {
		t.Errorf("contractionMRR = %f; want 20 across the gap", series[1].ContractionMRR)
	}
}

func TestCompute_Rounding(t *testing.T) {
	series := Compute([]domain.LedgerEntry{
		entry("a", "2024-01", 100.0/3), // 33.333...
		entry("a", "2024-02", 100.0/3),
		entry("b", "2024-02", 0.005),
	})

	m := series[1]
	if m.TotalMRR != 33.34 {
		t.Errorf("totalMRR = %v; want 33.34 (2dp)", m.TotalMRR)
	}
	if m.GrossRevenueRetention != 1 {
		t.Errorf("grossRevenueRetention = %v; want 1", m.GrossRevenueRetention)
	}
}

func TestCompute_EmptyLedger(t *testing.T) {
	if series := Compute(nil); len(series) != 0 {
		t.Errorf("empty ledger should yield an empty series, got %d", len(series))
	}
}

func TestComputeFromAggregates_TrustedBreakdown(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	series := ComputeFromAggregates([]domain.MonthlyAggregate{
		{Period: "2024-01", TotalRevenue: 150, CustomerCount: 2},
		{
			Period: "2024-02", TotalRevenue: 150, CustomerCount: 2,
			NewRevenue: f(30), ExpansionRevenue: f(20), ContractionRevenue: f(0), ChurnedRevenue: f(50),
		},
	})

	m := series[1]
	if m.NewMRR != 30 || m.ExpansionMRR != 20 || m.ChurnedMRR != 50 {
		t.Errorf("breakdown not trusted as given: %+v", m)
	}
	if m.GrossRevenueRetention != 0.6667 || m.NetRevenueRetention != 0.8 {
		t.Errorf("retention = %f/%f; want 0.6667/0.8",
			m.GrossRevenueRetention, m.NetRevenueRetention)
	}
}

func TestComputeFromAggregates_DerivedFromDeltas(t *testing.T) {
	series := ComputeFromAggregates([]domain.MonthlyAggregate{
		{Period: "2024-02", TotalRevenue: 80, CustomerCount: 4},
		{Period: "2024-01", TotalRevenue: 100, CustomerCount: 5},
	})

	// Sorted ascending regardless of input order.
	if series[0].Period != "2024-01" || series[1].Period != "2024-02" {
		t.Fatalf("series out of order: %s, %s", series[0].Period, series[1].Period)
	}
	m := series[1]
	if m.ChurnedMRR != 20 || m.NewMRR != 0 {
		t.Errorf("delta approximation: churned = %f, new = %f; want 20, 0", m.ChurnedMRR, m.NewMRR)
	}
	if m.LogoChurnRate != 0.2 {
		t.Errorf("logoChurnRate = %f; want 0.2", m.LogoChurnRate)
	}
}
