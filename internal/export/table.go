package export

import (
	"maps"
	"slices"

	"github.com/nao1215/shelfcrawl/internal/model"
)

// Table is the tabular form of a set of records.
type Table struct {
	// Header holds the column names.
	Header []string

	// Rows holds one row per non-empty record, cells in Header order.
	Rows [][]string
}

// BuildTable builds a table from records keyed by URL.
//
// The header is the sorted union of field names over all non-empty records,
// or defaultHeader when no record has a field. Empty records are visited
// pages with nothing to export and produce no row. Rows are ordered by URL
// and a field missing from a record is an empty cell.
func BuildTable(records map[string]model.Record, defaultHeader []string) Table {
	fields := make(map[string]struct{})
	for _, rec := range records {
		for name := range rec {
			fields[name] = struct{}{}
		}
	}

	header := slices.Sorted(maps.Keys(fields))
	if len(header) == 0 {
		header = slices.Clone(defaultHeader)
	}

	rows := make([][]string, 0, len(records))
	for _, u := range slices.Sorted(maps.Keys(records)) {
		rec := records[u]
		if rec.IsEmpty() {
			continue
		}
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = rec[name]
		}
		rows = append(rows, row)
	}

	return Table{Header: header, Rows: rows}
}

// Objects returns each row as a map from column name to cell.
func (t Table) Objects() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]string, len(t.Header))
		for i, name := range t.Header {
			obj[name] = row[i]
		}
		out = append(out, obj)
	}
	return out
}
