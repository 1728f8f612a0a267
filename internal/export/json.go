package export

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs a table as a JSON array of objects.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output.
	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the table. Keys of each object are the header columns.
func (w *JSONWriter) Write(t Table) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(t.Objects(), w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(t.Objects())
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
