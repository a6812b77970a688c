// Package csv reads comma-separated revenue tables into raw tables.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/DerkJan1/saasgrid-mvp/internal/reader"
)

// Reader implements CSV table reading with a stateless design; it is safe
// for concurrent use without locking.
type Reader struct{}

var readerInstance = &Reader{}

// NewReader returns the shared CSV reader instance.
func NewReader() *Reader {
	return readerInstance
}

// Name returns the reader identifier
func (r *Reader) Name() string {
	return "csv"
}

// CanRead checks extension and that the header row splits into at least two
// fields.
func (r *Reader) CanRead(path string, header []byte) bool {
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return false
	}

	cr := csv.NewReader(strings.NewReader(string(header)))
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	record, err := cr.Read()
	if err != nil {
		return false
	}
	return len(record) >= 2
}

// Read parses the whole file into a raw table. The first record is the
// header row.
func (r *Reader) Read(ctx context.Context, src io.Reader, path string) (*reader.RawTable, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cr := csv.NewReader(src)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content from %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file %s is empty", path)
	}

	return reader.NewRawTable(records[0], records[1:])
}
