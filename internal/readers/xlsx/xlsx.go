// Package xlsx reads Excel workbooks into raw tables via excelize.
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/DerkJan1/saasgrid-mvp/internal/reader"
)

// zipMagic is the PK zip signature every OOXML workbook starts with. Legacy
// binary .xls files lack it and are rejected here rather than deep inside
// excelize.
var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// Reader implements Excel workbook reading. Stateless; safe for concurrent
// use.
type Reader struct{}

var readerInstance = &Reader{}

// NewReader returns the shared Excel reader instance.
func NewReader() *Reader {
	return readerInstance
}

// Name returns the reader identifier
func (r *Reader) Name() string {
	return "xlsx"
}

// CanRead checks extension plus the zip container signature.
func (r *Reader) CanRead(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xls" {
		return false
	}
	return bytes.HasPrefix(header, zipMagic)
}

// Read parses the first sheet of the workbook into a raw table. Only the
// first sheet is consulted: revenue uploads are single-table files, and
// silently merging sheets would hide data from the user.
func (r *Reader) Read(ctx context.Context, src io.Reader, path string) (*reader.RawTable, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q from %s: %w", sheets[0], path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q in %s is empty", sheets[0], path)
	}

	return reader.NewRawTable(rows[0], rows[1:])
}
