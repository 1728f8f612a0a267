package crawler

import (
	"maps"

	"github.com/nao1215/shelfcrawl/internal/model"
)

// RecordStore maps every visited URL to the record extracted from it.
// Its key set is the visited set: a URL with an empty record was fetched
// but yielded nothing.
//
// Records are cloned on Put and never modified afterwards, so copies
// returned by All may share them. RecordStore is not safe for concurrent use.
type RecordStore struct {
	records   map[string]model.Record
	extracted int
}

// NewRecordStore creates a store pre-filled with records.
func NewRecordStore(records map[string]model.Record) *RecordStore {
	s := &RecordStore{records: make(map[string]model.Record, len(records))}
	for u, rec := range records {
		s.Put(u, rec)
	}
	return s
}

// Has reports whether u has been visited.
func (s *RecordStore) Has(u string) bool {
	_, ok := s.records[u]
	return ok
}

// Put stores the record for u. The first record wins: Put returns false and
// leaves the store unchanged if u is already present.
func (s *RecordStore) Put(u string, rec model.Record) bool {
	if s.Has(u) {
		return false
	}
	rec = rec.Clone()
	s.records[u] = rec
	if !rec.IsEmpty() {
		s.extracted++
	}
	return true
}

// Get returns the record for u.
func (s *RecordStore) Get(u string) (model.Record, bool) {
	rec, ok := s.records[u]
	return rec, ok
}

// All returns a copy of the URL to record map.
func (s *RecordStore) All() map[string]model.Record {
	return maps.Clone(s.records)
}

// Len returns the number of visited URLs.
func (s *RecordStore) Len() int {
	return len(s.records)
}

// Extracted returns the number of visited URLs with a non-empty record.
func (s *RecordStore) Extracted() int {
	return s.extracted
}
