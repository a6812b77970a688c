package detect

import (
	"fmt"

	"github.com/DerkJan1/saasgrid-mvp/internal/domain"
)

// DetectionError is the terminal failure for ambiguous (hybrid) or
// unrecognizable (unknown) table shapes. It carries concrete, per-format
// suggestions for the user; the pipeline never guesses past this point.
type DetectionError struct {
	Shape       domain.TableShape
	Warnings    []string
	Suggestions []string
}

func (e *DetectionError) Error() string {
	if e.Shape == domain.ShapeHybrid {
		return "table shape is ambiguous: both long-format and wide-format signals found"
	}
	return "table shape not recognized"
}

// longFormatSuggestions tell the user how to shape a one-row-per-observation
// upload; wideFormatSuggestions a one-column-per-month upload.
var (
	longFormatSuggestions = []string{
		"long format: include columns customerId (or customerName), month, and mrr",
		"long format: one row per customer per month, e.g. acme,2024-01,1500",
	}
	wideFormatSuggestions = []string{
		"wide format: first column holds customer names, every other column is a month header like 2024-01 or Jan/24",
		"wide format: leave a cell blank when a customer had no revenue that month",
	}
)

// NewDetectionError builds the terminal error for a rejected decision.
// Calling it with a non-terminal shape is a programming error.
func NewDetectionError(decision domain.FormatDecision) error {
	if !decision.Shape.Terminal() {
		return fmt.Errorf("decision shape %q is not a rejected state", decision.Shape)
	}
	suggestions := make([]string, 0, len(longFormatSuggestions)+len(wideFormatSuggestions))
	suggestions = append(suggestions, longFormatSuggestions...)
	suggestions = append(suggestions, wideFormatSuggestions...)
	return &DetectionError{
		Shape:       decision.Shape,
		Warnings:    decision.Warnings,
		Suggestions: suggestions,
	}
}
