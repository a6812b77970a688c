// Package reader defines the strategy interface for tabular file readers and
// the ephemeral RawTable they produce. A RawTable exists only for the
// duration of one upload's processing.
package reader

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Reader is the strategy interface for all tabular file formats.
type Reader interface {
	// Name returns the reader identifier (e.g., "csv", "xlsx")
	Name() string

	// CanRead checks if this reader can handle the file.
	// header holds up to the first 512 bytes of the file.
	CanRead(path string, header []byte) bool

	// Read parses the file into a raw table
	Read(ctx context.Context, r io.Reader, path string) (*RawTable, error)
}

// RawTable is an uploaded table as an ordered sequence of rows of cell
// strings. The first row of the source is split off as the header row.
type RawTable struct {
	headers []string
	rows    [][]string
}

// NewRawTable creates a validated raw table from a header row and data rows.
func NewRawTable(headers []string, rows [][]string) (*RawTable, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("table must have a header row")
	}
	return &RawTable{headers: headers, rows: rows}, nil
}

// Headers returns the header row.
func (t *RawTable) Headers() []string {
	return t.headers
}

// Rows returns the data rows.
func (t *RawTable) Rows() [][]string {
	return t.rows
}

// Cell returns the trimmed cell at (row, col), or "" when the row is ragged
// and has no such column. Spreadsheet exports routinely drop trailing empty
// cells, so ragged rows are normal rather than an error.
func (t *RawTable) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// ColumnIndex returns the index of the given header, or -1. An exact match
// wins; failing that, headers are compared after trimming surrounding
// whitespace, since detection works on trimmed header tokens.
func (t *RawTable) ColumnIndex(header string) int {
	for i, h := range t.headers {
		if h == header {
			return i
		}
	}
	want := strings.TrimSpace(header)
	for i, h := range t.headers {
		if strings.TrimSpace(h) == want {
			return i
		}
	}
	return -1
}
