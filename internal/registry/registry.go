// Package registry selects a tabular reader for an uploaded file by
// inspecting its extension and leading bytes.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/DerkJan1/saasgrid-mvp/internal/reader"
	"github.com/DerkJan1/saasgrid-mvp/internal/readers/csv"
	"github.com/DerkJan1/saasgrid-mvp/internal/readers/xlsx"
)

// Registry holds all registered readers
type Registry struct {
	readers []reader.Reader
}

// New creates a registry with all built-in readers
func New() *Registry {
	return &Registry{
		readers: []reader.Reader{
			csv.NewReader(),
			xlsx.NewReader(),
		},
	}
}

// Register adds a custom reader (for extensibility)
func (r *Registry) Register(rd reader.Reader) {
	r.readers = append(r.readers, rd)
}

// FindReader returns the best reader for this file. Reads the first 512
// bytes for format detection via header inspection; that is enough for the
// zip magic of a workbook and the header row of a CSV.
func (r *Registry) FindReader(path string) (reader.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// EOF is OK - tiny CSV uploads may be under 512 bytes. Readers receive
	// whatever was read and handle variable header sizes.
	header = header[:n]

	for _, rd := range r.readers {
		if rd.CanRead(path, header) {
			return rd, nil
		}
	}
	return nil, fmt.Errorf("no reader found for file: %s", path)
}

// ListReaders returns all registered reader names
func (r *Registry) ListReaders() []string {
	names := make([]string, len(r.readers))
	for i, rd := range r.readers {
		names[i] = rd.Name()
	}
	return names
}
