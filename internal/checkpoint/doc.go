// Package checkpoint persists crawl state between runs.
//
// A Store saves a complete model.Checkpoint after every crawl step and loads
// it again on startup. Two implementations exist: FileStore here, writing a
// single JSON document, and the SQLite store in internal/database.
//
// Load never makes a damaged or missing checkpoint fatal. It returns an
// empty checkpoint together with ErrNoCheckpoint or an error wrapping
// ErrCorrupt, and the caller logs it and starts fresh.
package checkpoint
