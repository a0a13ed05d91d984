package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pypitypes/internal/resolver"
)

// Header is the column layout of the published dataset.
var Header = []string{"package", "has_py_typed", "has_types_package"}

// CSVSink appends resolved rows to the dataset file. The file is opened in
// append mode so interrupted runs can resume; the header is written only when
// the file is new or empty. Booleans are encoded as "True"/"False" and an
// unknown stub status as an empty field, keeping the published dataset format
// stable.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat output file: %w", err)
	}

	s := &CSVSink{file: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := s.w.Write(Header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	return s, nil
}

// Write appends one row. Errored outcomes produce no row: the package stays
// absent from the dataset and a later run picks it up again.
func (s *CSVSink) Write(res Result) error {
	if res.Outcome.Err != nil {
		return nil
	}
	rec := res.Outcome.Record

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write([]string{rec.Package, formatBool(rec.HasPyTyped), formatTriState(rec.HasTypesPackage)}); err != nil {
		return err
	}
	// Flush per row so an interrupted run loses at most the row in flight.
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatTriState(t resolver.TriState) string {
	if !t.Known() {
		return ""
	}
	return formatBool(t == resolver.True)
}
