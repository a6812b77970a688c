package validate

import (
	"strings"
	"testing"
)

func TestValidate_CleanUpload(t *testing.T) {
	raw := strings.Join([]string{
		"customerId,month,mrr",
		"c1,2024-01,100",
		"c2,2024-01,250.50",
		"c1,2024-02,110",
	}, "\n")

	result := Validate(raw, DefaultConfig())

	if len(result.Errors) != 0 {
		t.Fatalf("clean upload produced errors: %+v", result.Errors)
	}
	if len(result.Accepted) != 3 {
		t.Fatalf("accepted %d rows; want 3", len(result.Accepted))
	}
	if result.Summary.TotalRows != 3 || result.Summary.ValidRows != 3 {
		t.Errorf("summary = %+v; want 3 total, 3 valid", result.Summary)
	}
	if result.Accepted[0].Period != "2024-01-01" {
		t.Errorf("period = %q; want normalized 2024-01-01", result.Accepted[0].Period)
	}
}

func TestValidate_PeriodShapes(t *testing.T) {
	tests := []struct {
		period     string
		normalized string
		ok         bool
	}{
		{"2024-01", "2024-01-01", true},
		{"2024-01-15", "2024-01-01", true},
		{"01/2024", "2024-01-01", true},
		{"01/15/2024", "2024-01-01", true},
		{"Jan/24", "", false},
		{"2024", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			raw := "month,mrr\n" + tt.period + ",100"
			result := Validate(raw, DefaultConfig())
			if tt.ok {
				if len(result.Accepted) != 1 {
					t.Fatalf("row rejected: %+v", result.Errors)
				}
				if result.Accepted[0].Period != tt.normalized {
					t.Errorf("period = %q; want %q", result.Accepted[0].Period, tt.normalized)
				}
			} else if len(result.Errors) == 0 {
				t.Error("expected a period error")
			}
		})
	}
}

func TestValidate_MissingRequiredColumn(t *testing.T) {
	result := Validate("customerId,mrr\nc1,100", DefaultConfig())

	if len(result.Accepted) != 0 {
		t.Error("no rows should be accepted without the period column")
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 0 {
		t.Fatalf("want a single header-level (row 0) error, got %+v", result.Errors)
	}
	if result.Errors[0].Column != "period" {
		t.Errorf("error column = %q; want period", result.Errors[0].Column)
	}
}

func TestValidate_RowNumbersAreUserFacing(t *testing.T) {
	raw := strings.Join([]string{
		"month,amount",
		"2024-01,100", // file row 2
		"bogus,200",   // file row 3
	}, "\n")

	result := Validate(raw, DefaultConfig())

	if len(result.Errors) != 1 {
		t.Fatalf("want 1 error, got %+v", result.Errors)
	}
	if result.Errors[0].Row != 3 {
		t.Errorf("error row = %d; want user-facing row 3", result.Errors[0].Row)
	}
}

func TestValidate_RowWithAnyErrorIsWhollyExcluded(t *testing.T) {
	// Valid period but negative amount: the row must not be partially kept.
	raw := "month,amount\n2024-01,-100"
	result := Validate(raw, DefaultConfig())

	if len(result.Accepted) != 0 {
		t.Errorf("row with an error was accepted: %+v", result.Accepted)
	}
	if result.Summary.ErrorRows != 1 {
		t.Errorf("summary = %+v; want 1 error row", result.Summary)
	}
}

func TestValidate_NonIntegerCustomerCountIsWarning(t *testing.T) {
	raw := "month,amount,customerCount\n2024-01,100,12.5"
	result := Validate(raw, DefaultConfig())

	if len(result.Accepted) != 1 {
		t.Fatalf("row should be accepted despite the warning; errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Column != "customerCount" {
		t.Fatalf("want one customerCount warning, got %+v", result.Warnings)
	}
	if result.Summary.WarningRows != 1 {
		t.Errorf("summary = %+v; want 1 warning row", result.Summary)
	}
}

func TestValidate_BreakdownSanityCheck(t *testing.T) {
	header := "month,amount,newRevenue,expansionRevenue,contractionRevenue,churnedRevenue"

	// Net movement 500 against amount 100 exceeds the 2x limit: warn only.
	result := Validate(header+"\n2024-01,100,500,0,0,0", DefaultConfig())
	if len(result.Accepted) != 1 {
		t.Fatalf("sanity check must not block ingestion; errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("want a scale warning, got %+v", result.Warnings)
	}

	// Balanced movements stay quiet.
	result = Validate(header+"\n2024-01,100,50,20,10,30", DefaultConfig())
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", result.Warnings)
	}

	// A zero total with nonzero net movements is the same scale mistake.
	result = Validate(header+"\n2024-01,0,500,0,0,0", DefaultConfig())
	if len(result.Accepted) != 1 {
		t.Fatalf("zero-amount row must still be accepted; errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("zero total with net movement 500 should warn, got %+v", result.Warnings)
	}

	// All-zero rows have nothing to flag.
	result = Validate(header+"\n2024-01,0,0,0,0,0", DefaultConfig())
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings on an all-zero row: %+v", result.Warnings)
	}
}

func TestValidate_ConfigOverridesRequiredColumns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequiredColumns = []string{"period", "amount", "customerCount"}

	result := Validate("month,amount\n2024-01,100", cfg)
	if len(result.Errors) != 1 || result.Errors[0].Column != "customerCount" {
		t.Fatalf("want a header-level customerCount error, got %+v", result.Errors)
	}
}

func TestValidate_ExtraAliases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtraAliases = map[string][]string{
		"period": {"close_month"},
		"amount": {"booked"},
	}

	result := Validate("close_month,booked\n2024-01,100", cfg)
	if len(result.Errors) != 0 {
		t.Fatalf("configured aliases must satisfy required columns, got %+v", result.Errors)
	}
	if len(result.Accepted) != 1 || result.Accepted[0].Amount != 100 {
		t.Fatalf("accepted = %+v; want one row with amount 100", result.Accepted)
	}

	// Without the aliases the same upload is rejected at the header.
	result = Validate("close_month,booked\n2024-01,100", DefaultConfig())
	if len(result.Errors) == 0 {
		t.Fatal("unaliased headers should fail the required-column check")
	}
}

func TestValidate_EmptyInput(t *testing.T) {
	result := Validate("", DefaultConfig())
	if len(result.Errors) == 0 || result.Errors[0].Row != 0 {
		t.Errorf("empty input should yield a row-0 error, got %+v", result.Errors)
	}
}
