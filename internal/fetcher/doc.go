// Package fetcher downloads pages politely.
//
// HTTPFetcher performs GET requests with a descriptive User-Agent, decodes
// compressed bodies and caps their size. Every failure is folded into
// Result.Err, so callers branch on Result.OK instead of juggling errors and
// partial responses.
//
// Politeness lives in Pacer. A single Pacer is shared by all crawl workers:
// each request reserves the next slot on one schedule, with slots spaced by
// a random delay drawn from |N(mean, sigma)|. An optional token bucket from
// golang.org/x/time/rate adds a hard requests-per-second ceiling.
package fetcher
