package export

import (
	"encoding/csv"
	"io"
)

// CSVWriter outputs a table as CSV with a header line.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the table.
func (w *CSVWriter) Write(t Table) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := csv.NewWriter(cw)

	if err := enc.Write(t.Header); err != nil {
		return cw.n, err
	}
	if err := enc.WriteAll(t.Rows); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}
