// Package main provides the entry point for the shelfcrawl CLI.
//
// shelfcrawl is a polite, resumable crawler. It walks every page reachable
// from a seed URL inside one origin, extracts a record from each page and
// saves a checkpoint after every page, so an interrupted crawl picks up
// where it stopped.
//
// Usage:
//
//	shelfcrawl crawl
//	shelfcrawl crawl --origin https://example.com --workers 4
//	shelfcrawl export --format markdown -o books.md
//	shelfcrawl status
//
// See --help for all available options.
package main

// main is the entry point for shelfcrawl.
func main() {
	Execute()
}
