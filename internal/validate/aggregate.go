package validate

import (
	"sort"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

// Aggregates folds the accepted rows into one MonthlyAggregate per period,
// in ascending period order. Amounts sum across rows of the same period. A
// breakdown component is carried only when every row of the period provides
// it; a partial breakdown cannot be trusted and is dropped for that month.
func (r *Result) Aggregates() []domain.MonthlyAggregate {
	type acc struct {
		total       float64
		count       float64
		hasCount    bool
		rows        int
		positive    int
		newRev      float64
		expansion   float64
		contraction float64
		churned     float64
		breakdowns  int
	}

	byPeriod := make(map[string]*acc)
	for _, row := range r.Accepted {
		period := row.Period
		if len(period) >= 7 {
			period = period[:7]
		}
		a, ok := byPeriod[period]
		if !ok {
			a = &acc{}
			byPeriod[period] = a
		}
		a.total += row.Amount
		a.rows++
		if row.Amount > 0 {
			a.positive++
		}
		if row.CustomerCount != nil {
			a.count += *row.CustomerCount
			a.hasCount = true
		}
		if row.NewRevenue != nil && row.ExpansionRev != nil &&
			row.ContractionRev != nil && row.ChurnedRev != nil {
			a.newRev += *row.NewRevenue
			a.expansion += *row.ExpansionRev
			a.contraction += *row.ContractionRev
			a.churned += *row.ChurnedRev
			a.breakdowns++
		}
	}

	periods := make([]string, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	aggregates := make([]domain.MonthlyAggregate, 0, len(periods))
	for _, p := range periods {
		a := byPeriod[p]
		agg := domain.MonthlyAggregate{
			Period:       p,
			TotalRevenue: a.total,
		}
		if a.hasCount {
			agg.CustomerCount = int(a.count)
		} else {
			agg.CustomerCount = a.positive
		}
		if a.breakdowns == a.rows && a.rows > 0 {
			newRev, expansion, contraction, churned := a.newRev, a.expansion, a.contraction, a.churned
			agg.NewRevenue = &newRev
			agg.ExpansionRevenue = &expansion
			agg.ContractionRevenue = &contraction
			agg.ChurnedRevenue = &churned
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates
}
