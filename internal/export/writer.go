package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnknownFormat is returned for an export format that has no writer.
var ErrUnknownFormat = errors.New("unknown export format")

// Format names an export format.
type Format string

const (
	// FormatCSV is comma-separated values with a header line.
	FormatCSV Format = "csv"
	// FormatMarkdown is a GitHub-flavored Markdown table.
	FormatMarkdown Format = "markdown"
	// FormatJSON is an array of objects, one per row.
	FormatJSON Format = "json"
)

// Formats returns the supported formats.
func Formats() []Format {
	return []Format{FormatCSV, FormatMarkdown, FormatJSON}
}

// ParseFormat parses a format name. "md" is accepted for Markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Writer writes a table.
type Writer interface {
	// Write outputs the table and returns the number of bytes written.
	Write(t Table) (int, error)
}

// NewWriter returns the writer for format writing to output.
func NewWriter(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

// baseWriter provides common functionality for table writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
