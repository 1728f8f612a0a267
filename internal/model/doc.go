// Package model defines the data structures shared by the crawler, the
// checkpoint stores and the exporters.
//
// This package contains the following main types:
//   - Record: The fields extracted from one visited page
//   - Checkpoint: The durable snapshot of a crawl (frontier + records)
//   - Failure: A URL that exhausted its retry budget
//
// Design decision: We keep these types in their own package so that
// checkpoint, database, crawler and export can all depend on them without
// depending on each other.
package model
