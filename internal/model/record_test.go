package model

import (
	"slices"
	"testing"
)

// TestRecord tests Record helpers.
func TestRecord(t *testing.T) {
	t.Parallel()

	t.Run("nil record is empty", func(t *testing.T) {
		t.Parallel()

		var r Record
		if !r.IsEmpty() {
			t.Error("expected nil record to be empty")
		}
	})

	t.Run("clone of nil record is writable", func(t *testing.T) {
		t.Parallel()

		var r Record
		c := r.Clone()
		c["title"] = "x"
		if len(c) != 1 {
			t.Errorf("expected 1 field, got %d", len(c))
		}
	})

	t.Run("clone does not share storage", func(t *testing.T) {
		t.Parallel()

		r := Record{"title": "A Light in the Attic"}
		c := r.Clone()
		c["title"] = "changed"
		if r["title"] != "A Light in the Attic" {
			t.Errorf("original record was modified: %q", r["title"])
		}
	})

	t.Run("fields are sorted", func(t *testing.T) {
		t.Parallel()

		r := Record{"rating": "Three", "price": "£51.77", "title": "x"}
		want := []string{"price", "rating", "title"}
		if got := r.Fields(); !slices.Equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}

// TestDefaultFields verifies the fallback export header.
func TestDefaultFields(t *testing.T) {
	t.Parallel()

	want := []string{"title", "price", "rating"}
	if got := DefaultFields(); !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
