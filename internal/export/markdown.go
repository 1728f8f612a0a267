package export

import (
	"io"

	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs a table in GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the table.
func (w *MarkdownWriter) Write(t Table) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.Table(markdown.TableSet{
		Header: t.Header,
		Rows:   t.Rows,
	})
	return len(md.String()), md.Build()
}
