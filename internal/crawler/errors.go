package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSeed is returned by Run when the frontier is empty and no seed
	// URL was configured.
	ErrNoSeed = errors.New("no seed URL configured")

	// ErrSeedOutOfScope is returned by Run when the seed URL lies outside
	// the crawl origin.
	ErrSeedOutOfScope = errors.New("seed URL is outside the crawl origin")

	// ErrInvalidURL is returned by Scope for URLs that cannot be crawled.
	ErrInvalidURL = errors.New("invalid URL")

	// errDrained and errBudget stop a worker's claim loop.
	errDrained = errors.New("frontier drained")
	errBudget  = errors.New("page budget exhausted")
)

// ErrorKind classifies crawl errors by how the crawl reacts to them.
type ErrorKind int

const (
	// KindTransientFetch is a failed fetch; the URL is retried.
	KindTransientFetch ErrorKind = iota
	// KindExtraction is a page that yielded no record; it is recorded empty.
	KindExtraction
	// KindCheckpointIO is a failed checkpoint save; the crawl continues.
	KindCheckpointIO
	// KindExport is a failed export; the checkpoint is left untouched.
	KindExport
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransientFetch:
		return "transient fetch"
	case KindExtraction:
		return "extraction"
	case KindCheckpointIO:
		return "checkpoint io"
	case KindExport:
		return "export"
	default:
		return "unknown"
	}
}

// Error is a crawl error with its kind and the URL involved, if any.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err with a kind and URL.
func newError(kind ErrorKind, u string, err error) *Error {
	return &Error{Kind: kind, URL: u, Err: err}
}
