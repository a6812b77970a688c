// Package metrics derives the monthly SaaS KPI series from a clean
// per-customer per-month revenue ledger, or from pre-aggregated monthly
// totals. Each month is compared against the immediately preceding month in
// the distinct-period sequence, which is not necessarily calendar-adjacent.
package metrics

import (
	"math"
	"sort"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

// magicNumberCeiling is reported when sales efficiency has revenue gains but
// zero losses, where the ratio would otherwise be infinite.
const magicNumberCeiling = 5

// Compute derives one MonthlyMetrics per distinct period in the ledger, in
// ascending period order. A customer with a zero amount (or no row) in a
// month counts as absent for the revenue-movement comparisons; an explicit
// zero still contributes its (zero) revenue to the month's total.
func Compute(entries []domain.LedgerEntry) []domain.MonthlyMetrics {
	byPeriod := make(map[string]map[string]float64)
	for _, e := range entries {
		m, ok := byPeriod[e.Period]
		if !ok {
			m = make(map[string]float64)
			byPeriod[e.Period] = m
		}
		m[e.CustomerID] = e.Amount
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	series := make([]domain.MonthlyMetrics, 0, len(periods))
	prev := map[string]float64{}
	for i, p := range periods {
		current := byPeriod[p]
		m := comparePeriods(p, current, prev, i == 0)
		series = append(series, m)
		prev = current
	}
	return series
}

// comparePeriods builds the KPI set for one period against its predecessor.
func comparePeriods(period string, current, prev map[string]float64, first bool) domain.MonthlyMetrics {
	var totalMRR, newMRR, expansion, contraction, churned float64
	var churnedCustomers int

	for id, amount := range current {
		totalMRR += amount
		if amount <= 0 {
			continue
		}
		prevAmount := prev[id]
		switch {
		case prevAmount <= 0:
			newMRR += amount
		case amount > prevAmount:
			expansion += amount - prevAmount
		case amount < prevAmount:
			contraction += prevAmount - amount
		}
	}

	var prevTotal float64
	var prevCustomers int
	for id, amount := range prev {
		prevTotal += amount
		if amount <= 0 {
			continue
		}
		prevCustomers++
		if current[id] <= 0 {
			churned += amount
			churnedCustomers++
		}
	}

	m := domain.MonthlyMetrics{
		Period:         period,
		TotalMRR:       roundMoney(totalMRR),
		ARR:            roundMoney(totalMRR * 12),
		CustomerCount:  countPositive(current),
		NewMRR:         roundMoney(newMRR),
		ExpansionMRR:   roundMoney(expansion),
		ContractionMRR: roundMoney(contraction),
		ChurnedMRR:     roundMoney(churned),
	}

	// Retention against a zero prior base is a perfect 1.0, never NaN.
	if prevTotal == 0 {
		m.GrossRevenueRetention = 1
		m.NetRevenueRetention = 1
	} else {
		m.GrossRevenueRetention = roundRatio((prevTotal - churned - contraction) / prevTotal)
		m.NetRevenueRetention = roundRatio((prevTotal - churned - contraction + expansion) / prevTotal)
	}

	if prevCustomers > 0 {
		m.LogoChurnRate = roundRatio(float64(churnedCustomers) / float64(prevCustomers))
	}

	if !first {
		m.MagicNumber = magicNumber(newMRR+expansion, churned+contraction)
	}

	return m
}

// magicNumber is the growth-efficiency proxy (new + expansion over churned +
// contraction). Gains with zero losses report a fixed ceiling rather than
// infinity; no movement at all reports 0.
func magicNumber(gained, lost float64) float64 {
	if lost == 0 {
		if gained > 0 {
			return magicNumberCeiling
		}
		return 0
	}
	return roundRatio(gained / lost)
}

// ComputeFromAggregates derives the KPI series from pre-aggregated monthly
// totals. A complete revenue-movement breakdown is trusted as given; without
// one the movements are approximated from the total deltas (a positive delta
// reads as new revenue, a negative one as churn).
func ComputeFromAggregates(aggregates []domain.MonthlyAggregate) []domain.MonthlyMetrics {
	sorted := make([]domain.MonthlyAggregate, len(aggregates))
	copy(sorted, aggregates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Period < sorted[j].Period })

	series := make([]domain.MonthlyMetrics, 0, len(sorted))
	var prevTotal float64
	var prevCount int
	for i, agg := range sorted {
		var newMRR, expansion, contraction, churned float64
		if agg.HasBreakdown() {
			newMRR = *agg.NewRevenue
			expansion = *agg.ExpansionRevenue
			contraction = *agg.ContractionRevenue
			churned = *agg.ChurnedRevenue
		} else if i > 0 {
			delta := agg.TotalRevenue - prevTotal
			if delta >= 0 {
				newMRR = delta
			} else {
				churned = -delta
			}
		} else {
			newMRR = agg.TotalRevenue
		}

		m := domain.MonthlyMetrics{
			Period:         agg.Period,
			TotalMRR:       roundMoney(agg.TotalRevenue),
			ARR:            roundMoney(agg.TotalRevenue * 12),
			CustomerCount:  agg.CustomerCount,
			NewMRR:         roundMoney(newMRR),
			ExpansionMRR:   roundMoney(expansion),
			ContractionMRR: roundMoney(contraction),
			ChurnedMRR:     roundMoney(churned),
		}

		if i == 0 || prevTotal == 0 {
			m.GrossRevenueRetention = 1
			m.NetRevenueRetention = 1
		} else {
			m.GrossRevenueRetention = roundRatio((prevTotal - churned - contraction) / prevTotal)
			m.NetRevenueRetention = roundRatio((prevTotal - churned - contraction + expansion) / prevTotal)
		}

		if i > 0 && prevCount > 0 {
			lost := prevCount - agg.CustomerCount
			if lost > 0 {
				m.LogoChurnRate = roundRatio(float64(lost) / float64(prevCount))
			}
		}

		if i > 0 {
			m.MagicNumber = magicNumber(newMRR+expansion, churned+contraction)
		}

		series = append(series, m)
		prevTotal = agg.TotalRevenue
		prevCount = agg.CustomerCount
	}
	return series
}

// countPositive counts customers with revenue in the month.
func countPositive(m map[string]float64) int {
	n := 0
	for _, amount := range m {
		if amount > 0 {
			n++
		}
	}
	return n
}

// Monetary values round to cents, ratios to basis points. Rounding happens
// exactly once per metric, after its full computation, so chained derivations
// never compound rounding error.
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundRatio(v float64) float64 {
	return math.Round(v*10000) / 10000
}
