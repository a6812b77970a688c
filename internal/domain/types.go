// Package domain defines the core data model for the revenue ingestion
// pipeline: detected table shapes, ledger entries, monthly aggregates and the
// derived monthly metrics series.
package domain

import (
	"fmt"
	"regexp"
)

// TableShape classifies the layout of an uploaded revenue table.
// Use ValidateTableShape to ensure validity before use.
type TableShape string

const (
	// ShapeLong is one row per (customer, month) observation.
	ShapeLong TableShape = "long"
	// ShapeWide is one row per customer with one column per month.
	ShapeWide TableShape = "wide"
	// ShapeHybrid means both long and wide signals were found. Ambiguous;
	// extraction must not proceed.
	ShapeHybrid TableShape = "hybrid"
	// ShapeUnknown means no recognizable layout was found.
	ShapeUnknown TableShape = "unknown"
)

var validTableShapes = map[TableShape]struct{}{
	ShapeLong: {}, ShapeWide: {}, ShapeHybrid: {}, ShapeUnknown: {},
}

// ValidateTableShape checks if shape is valid
func ValidateTableShape(s TableShape) bool {
	_, ok := validTableShapes[s]
	return ok
}

// Terminal reports whether the shape is a rejected state for the pipeline.
func (s TableShape) Terminal() bool {
	return s == ShapeHybrid || s == ShapeUnknown
}

// FormatDecision is the detector's verdict for one upload. Immutable once
// produced; it drives extraction policy.
type FormatDecision struct {
	Shape           TableShape `json:"shape"`
	Confidence      float64    `json:"confidence"`
	PeriodColumns   []string   `json:"periodColumns"`
	IdentityColumns []string   `json:"identityColumns"`
	Warnings        []string   `json:"warnings"`
}

// periodPattern matches the canonical YYYY-MM period form.
var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidPeriod reports whether p is a canonical YYYY-MM period string.
func ValidPeriod(p string) bool {
	return periodPattern.MatchString(p)
}

// LedgerEntry is one observed (customer, month, revenue) fact. The ledger is
// the durable source of truth; metrics are always re-derivable from it.
//
// Invariant: at most one entry per (CustomerID, Period) pair after extraction.
type LedgerEntry struct {
	CustomerID   string  `json:"customerId"`
	CustomerName string  `json:"customerName"`
	Period       string  `json:"period"` // YYYY-MM
	Amount       float64 `json:"amount"` // non-negative
}

// NewLedgerEntry creates a validated ledger entry.
func NewLedgerEntry(customerID, customerName, period string, amount float64) (*LedgerEntry, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer ID cannot be empty")
	}
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("invalid period %q (expected YYYY-MM)", period)
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount cannot be negative, got %f", amount)
	}
	return &LedgerEntry{
		CustomerID:   customerID,
		CustomerName: customerName,
		Period:       period,
		Amount:       amount,
	}, nil
}

// MonthlyAggregate is a pre-aggregated month of revenue for one company.
// The breakdown fields are optional: when nil the metrics engine derives them
// by diffing the customer-level ledger between adjacent periods; when present
// they are trusted as given.
type MonthlyAggregate struct {
	Period             string   `json:"period"`
	TotalRevenue       float64  `json:"totalRevenue"`
	CustomerCount      int      `json:"customerCount"`
	NewRevenue         *float64 `json:"newRevenue,omitempty"`
	ExpansionRevenue   *float64 `json:"expansionRevenue,omitempty"`
	ContractionRevenue *float64 `json:"contractionRevenue,omitempty"`
	ChurnedRevenue     *float64 `json:"churnedRevenue,omitempty"`
}

// HasBreakdown reports whether all four revenue-movement components are present.
func (a *MonthlyAggregate) HasBreakdown() bool {
	return a.NewRevenue != nil && a.ExpansionRevenue != nil &&
		a.ContractionRevenue != nil && a.ChurnedRevenue != nil
}

// MonthlyMetrics is the derived KPI set for one month. Read-only once
// produced; recomputed in full whenever the input ledger changes.
type MonthlyMetrics struct {
	Period                string  `json:"period"`
	TotalMRR              float64 `json:"totalMRR"`
	ARR                   float64 `json:"arr"`
	CustomerCount         int     `json:"customerCount"`
	NewMRR                float64 `json:"newMRR"`
	ExpansionMRR          float64 `json:"expansionMRR"`
	ContractionMRR        float64 `json:"contractionMRR"`
	ChurnedMRR            float64 `json:"churnedMRR"`
	GrossRevenueRetention float64 `json:"grossRevenueRetention"`
	NetRevenueRetention   float64 `json:"netRevenueRetention"`
	LogoChurnRate         float64 `json:"logoChurnRate"`
	MagicNumber           float64 `json:"magicNumber"`
}
