// Package database provides the SQLite checkpoint backend for shelfcrawl.
//
// CrawlDB implements checkpoint.Store on top of modernc.org/sqlite. The
// checkpoint is spread across tables instead of a single document:
//   - frontier: pending URLs with their queue position
//   - records: visited URLs and their extracted fields as JSON
//   - retries / failures: retry bookkeeping
//   - runs: one row per crawl invocation, for the status command
//
// Save replaces the stored snapshot inside one transaction, so a reader (or
// a crash) never observes half a checkpoint. Records are append-only during
// a crawl, so Save only writes records it has not persisted before.
package database
