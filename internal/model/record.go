package model

import (
	"maps"
	"slices"
)

// Default record field names. These match the default extraction rules for a
// book catalogue page; sites may configure other fields.
const (
	// FieldTitle is the product title.
	FieldTitle = "title"

	// FieldPrice is the displayed price, currency symbol included.
	FieldPrice = "price"

	// FieldRating is the rating word taken from the star-rating class.
	FieldRating = "rating"
)

// DefaultFields returns the header used when no record carries any field.
func DefaultFields() []string {
	return []string{FieldTitle, FieldPrice, FieldRating}
}

// Record maps a field name to the value extracted for one URL.
//
// An empty Record is meaningful: the page was fetched but nothing could be
// extracted from it (for example a category listing). The URL still counts
// as visited.
type Record map[string]string

// IsEmpty reports whether the record holds no fields.
func (r Record) IsEmpty() bool {
	return len(r) == 0
}

// Clone returns a copy of the record. A nil record clones to an empty one,
// so callers can always write to the result.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	maps.Copy(out, r)
	return out
}

// Fields returns the field names of the record in sorted order.
func (r Record) Fields() []string {
	return slices.Sorted(maps.Keys(r))
}
