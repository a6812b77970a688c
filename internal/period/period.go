// Package period normalizes the many ways spreadsheets encode a calendar
// month (ISO months, slash and dash forms, month names, quarters, spreadsheet
// date serials) into the canonical YYYY-MM representation.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FormatError reports a period token that matched none of the recognized
// encodings.
type FormatError struct {
	Token string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unparseable period token %q", e.Token)
}

// serialEpoch is the spreadsheet date serial epoch. Day 1 is 1899-12-31;
// the off-by-two relative to 1900-01-01 preserves the historical Lotus
// leap-year bug that every spreadsheet still emulates.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Serials are only treated as dates when they land in this year range.
// Anything else is far more likely to be a revenue figure than a month.
const (
	serialMinYear = 1999
	serialMaxYear = 2100
)

// Years outside this range are accepted but reported as unusual. Legitimate
// historical or far-future test data may use them, so they never hard-fail.
const (
	saneYearMin = 1990
	saneYearMax = 2099
)

// now is stubbed in tests to pin the two-digit-year window.
var now = time.Now

var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

var (
	isoPattern       = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)
	monthNamePattern = regexp.MustCompile(`^([A-Za-z]+)[\s/-](\d{2}|\d{4})$`)
	numericPattern   = regexp.MustCompile(`^(\d{1,4})[/-](\d{1,4})$`)
	quarterPattern   = regexp.MustCompile(`^[Qq]([1-4])[\s/-](\d{4})$`)
)

// Normalize parses a period token into canonical YYYY-MM form. Encodings are
// tried in a fixed priority order; the first match wins. Returns a
// *FormatError when no encoding matches.
//
// Normalize is a pure function of its input (plus the current year, which
// only influences two-digit-year expansion).
func Normalize(token string) (string, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return "", &FormatError{Token: token}
	}

	// 1. Already canonical.
	if isoPattern.MatchString(t) {
		return t, nil
	}

	// 2. Spreadsheet date serial.
	if serial, err := strconv.Atoi(t); err == nil {
		if p, ok := FromSerial(serial); ok {
			return p, nil
		}
		return "", &FormatError{Token: token}
	}

	// 3. Month name plus 2- or 4-digit year: "Jan/24", "March 2024".
	if m := monthNamePattern.FindStringSubmatch(t); m != nil {
		month, ok := monthNames[strings.ToLower(m[1])]
		if !ok {
			return "", &FormatError{Token: token}
		}
		year, err := parseYear(m[2])
		if err != nil {
			return "", &FormatError{Token: token}
		}
		return formatPeriod(year, month), nil
	}

	// 4. Purely numeric pair: the 4-digit component is the year regardless
	// of position ("03/2024", "2024-03").
	if m := numericPattern.FindStringSubmatch(t); m != nil {
		if p, ok := normalizeNumericPair(m[1], m[2]); ok {
			return p, nil
		}
		return "", &FormatError{Token: token}
	}

	// 5. Quarter notation maps to the quarter's first month.
	if m := quarterPattern.FindStringSubmatch(t); m != nil {
		q, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		return formatPeriod(year, (q-1)*3+1), nil
	}

	// 6. Generic date string as a last resort.
	for _, layout := range []string{
		"2006-01-02", "2006/01/02", "01/02/2006", "January 2, 2006", "2 January 2006",
	} {
		if d, err := time.Parse(layout, t); err == nil {
			return formatPeriod(d.Year(), int(d.Month())), nil
		}
	}

	return "", &FormatError{Token: token}
}

// LooksLikePeriod reports whether the token matches any non-serial period
// encoding. Serial numbers are excluded deliberately: a bare integer in a
// header is only trusted as a date when it appears alongside a run of other
// serials, which is the format detector's call to make.
func LooksLikePeriod(token string) bool {
	t := strings.TrimSpace(token)
	if t == "" {
		return false
	}
	if _, err := strconv.Atoi(t); err == nil {
		return false
	}
	_, err := Normalize(t)
	return err == nil
}

// FromSerial converts a spreadsheet date serial to YYYY-MM. The second return
// is false when the serial falls outside the plausible year range.
func FromSerial(serial int) (string, bool) {
	d := serialEpoch.AddDate(0, 0, serial)
	if d.Year() < serialMinYear || d.Year() > serialMaxYear {
		return "", false
	}
	return formatPeriod(d.Year(), int(d.Month())), true
}

// PlausibleSerial reports whether n would be accepted by FromSerial.
func PlausibleSerial(n int) bool {
	_, ok := FromSerial(n)
	return ok
}

// IsUnusualYear reports whether the canonical period carries a year outside
// the sane bounds. Unusual years are a data-quality warning, never an error.
func IsUnusualYear(canonical string) bool {
	return YearOutOfRange(canonical, saneYearMin, saneYearMax)
}

// YearOutOfRange reports whether the canonical period carries a year outside
// [minYear, maxYear]. Malformed periods are never flagged here; they fail
// Normalize instead.
func YearOutOfRange(canonical string, minYear, maxYear int) bool {
	m := isoPattern.FindStringSubmatch(canonical)
	if m == nil {
		return false
	}
	year, _ := strconv.Atoi(m[1])
	return year < minYear || year > maxYear
}

// parseYear expands a 2- or 4-digit year string to a full year.
func parseYear(s string) (int, error) {
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if len(s) == 2 {
		return expandTwoDigitYear(year, now().Year()), nil
	}
	return year, nil
}

// expandTwoDigitYear resolves a two-digit year with a rolling window: at most
// 20 years ahead of the current year, the rest behind it. With current year
// 2025: 45 resolves to 2045, 46 to 1946. The window rolls across century
// boundaries, so with current year 2090, 10 resolves to 2110.
func expandTwoDigitYear(yy, currentYear int) int {
	candidate := currentYear - currentYear%100 + yy
	if candidate > currentYear+20 {
		return candidate - 100
	}
	if candidate < currentYear-79 {
		return candidate + 100
	}
	return candidate
}

// normalizeNumericPair interprets an A<sep>B token where the 4-digit
// component is the year and the other is the month.
func normalizeNumericPair(a, b string) (string, bool) {
	var yearStr, monthStr string
	switch {
	case len(a) == 4 && len(b) <= 2:
		yearStr, monthStr = a, b
	case len(b) == 4 && len(a) <= 2:
		yearStr, monthStr = b, a
	default:
		return "", false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return "", false
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	return formatPeriod(year, month), true
}

func formatPeriod(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
