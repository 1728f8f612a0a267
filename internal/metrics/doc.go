// Package metrics exposes crawl counters over the Prometheus text format.
//
// Each Metrics value owns a private registry so that several crawls in one
// process (or parallel tests) never collide on global collector names. The
// crawler treats a nil *Metrics as "metrics disabled".
package metrics
