package config

import "errors"

// Configuration validation errors returned by Config.Validate().
// Callers can match them with errors.Is.
var (
	// ErrNoOrigin is returned when no origin is configured.
	ErrNoOrigin = errors.New("no origin specified: provide --origin")

	// ErrInvalidOrigin is returned when the origin is not an absolute http(s) URL.
	ErrInvalidOrigin = errors.New("invalid origin: must be an absolute http or https URL")

	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed: must be an absolute http or https URL")

	// ErrNoStateFile is returned when the selected backend has no location.
	ErrNoStateFile = errors.New("no checkpoint location: provide --state or --db-dir")

	// ErrUnknownBackend is returned for a backend other than json or sqlite.
	ErrUnknownBackend = errors.New("unknown checkpoint backend: use json or sqlite")

	// ErrUnknownExportFormat is returned for an unsupported export format.
	ErrUnknownExportFormat = errors.New("unknown export format: use csv, markdown or json")

	// ErrUnknownLogFormat is returned for an unsupported log format.
	ErrUnknownLogFormat = errors.New("unknown log format: use text or json")

	// ErrInvalidDelay is returned when the delay mean or sigma is negative.
	ErrInvalidDelay = errors.New("invalid delay: mean and sigma must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidMaxRetries is returned when the retry cap is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRetryBackoff is returned when a retry backoff is negative.
	ErrInvalidRetryBackoff = errors.New("invalid retry backoff: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page budget is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
