package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

// capture collects everything the helpers print, with color escapes off so
// assertions see plain text.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	prevOut, prevNoColor := color.Output, color.NoColor
	var buf bytes.Buffer
	color.Output = &buf
	color.NoColor = true
	defer func() {
		color.Output = prevOut
		color.NoColor = prevNoColor
	}()
	fn()
	return buf.String()
}

func TestCenter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		width    int
		expected string
	}{
		{"shorter than width", "done", 10, "   done"},
		{"odd leftover pads left", "abc", 10, "   abc"},
		{"exact width", "12345", 5, "12345"},
		{"wider than width unchanged", "revenue upload", 5, "revenue upload"},
		{"empty text", "", 4, "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := center(tt.text, tt.width); got != tt.expected {
				t.Errorf("center(%q, %d) = %q; want %q", tt.text, tt.width, got, tt.expected)
			}
		})
	}
}

func TestHeader(t *testing.T) {
	out := capture(t, func() { Header("Metrics") })

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Header printed %d lines; want 3:\n%s", len(lines), out)
	}
	rule := strings.Repeat("=", headerWidth)
	if lines[0] != rule || lines[2] != rule {
		t.Errorf("rule lines = %q / %q; want %d '=' characters", lines[0], lines[2], headerWidth)
	}
	if strings.TrimSpace(lines[1]) != "Metrics" {
		t.Errorf("banner line = %q; want centered %q", lines[1], "Metrics")
	}
	if !strings.HasPrefix(lines[1], " ") {
		t.Errorf("banner line %q is not padded", lines[1])
	}
}

func TestStep(t *testing.T) {
	out := capture(t, func() { Step(2, 4, "Extracting records") })
	if out != "[2/4] Extracting records\n" {
		t.Errorf("Step output = %q", out)
	}
}

func TestStatusPrefixes(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(string)
		expected string
	}{
		{"Success", Success, "✓ saved\n"},
		{"Warning", Warning, "⚠ saved\n"},
		{"Error", Error, "✗ saved\n"},
		{"Info", Info, "saved\n"},
		{"BlueText", BlueText, "saved\n"},
		{"YellowText", YellowText, "saved\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := capture(t, func() { tt.fn("saved") })
			if out != tt.expected {
				t.Errorf("%s(\"saved\") printed %q; want %q", tt.name, out, tt.expected)
			}
		})
	}
}
