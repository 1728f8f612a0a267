// Package export writes crawled records as a table.
//
// BuildTable turns the record store into a header and rows; the writers
// render that table as CSV, Markdown or JSON. WriteFile picks a writer by
// format and replaces the target file atomically, so a failed export never
// leaves a half-written file behind.
package export
