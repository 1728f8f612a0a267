// Package crawler implements the resumable crawl loop.
//
// # Architecture
//
// The package is built around the Spider type, which runs one or more
// workers over a shared State:
//
//   - Frontier: FIFO queue of URLs to fetch, without duplicates
//   - RecordStore: every visited URL and the record extracted from it
//   - State: frontier, records, failed bucket, retry counts and in-flight
//     URLs behind one mutex
//   - Scope: URL normalization and the origin boundary
//
// A worker claims a URL, fetches it through a fetcher.Fetcher, extracts
// a record and links through an extract.Extractor, completes the URL in
// State and saves a checkpoint through a checkpoint.Store. Failed fetches
// go back to the head of the frontier until the retry budget is spent.
//
// # Resumption
//
// Checkpoints list in-flight URLs ahead of the frontier, so a checkpoint
// written at any moment holds every URL that is not yet visited or failed.
// Cancelling the context stops workers from claiming new URLs; requests
// already sent are allowed to finish and are checkpointed.
//
// # Usage
//
//	scope, _ := crawler.NewScope("http://books.toscrape.com")
//	spider := crawler.NewSpider(f, ex, store, scope,
//		crawler.WithSeed("http://books.toscrape.com/index.html"))
//	res, err := spider.Run(ctx)
package crawler
