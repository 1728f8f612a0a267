package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// The politeness and retry values are deliberately conservative: the crawler
// is meant to run unattended against a single site for a long time.
const (
	// DefaultOrigin is the base origin the crawl is bounded to.
	DefaultOrigin = "http://books.toscrape.com"

	// DefaultSeedPath is appended to the origin when no seed URL is given.
	DefaultSeedPath = "/index.html"

	// DefaultStateFile is the JSON checkpoint written after every processed URL.
	DefaultStateFile = "state.json"

	// DefaultOutputFile is where the export is written once the crawl is done.
	DefaultOutputFile = "books.csv"

	// DefaultExportFormat is the export format used when none is given.
	DefaultExportFormat = FormatCSV

	// DefaultBackend stores the checkpoint as a JSON document.
	DefaultBackend = BackendJSON

	// DefaultDelayMean is the mean of the randomized delay before each request.
	DefaultDelayMean = 100 * time.Millisecond

	// DefaultDelaySigma is the spread of the randomized delay.
	// The delay is |N(mean, sigma)| so it is never negative.
	DefaultDelaySigma = 100 * time.Millisecond

	// DefaultWorkers of 1 keeps the strict breadth-first order of a single
	// worker. More workers share the same pacer, so the aggregate request
	// rate does not grow with the worker count.
	DefaultWorkers = 1

	// DefaultMaxRetries is the number of failed fetches after which a URL is
	// moved to the failed bucket. 0 retries forever.
	DefaultMaxRetries = 5

	// DefaultRetryBackoff is the wait before the first retry of a URL.
	// It doubles with every further failure.
	DefaultRetryBackoff = 500 * time.Millisecond

	// DefaultMaxRetryBackoff caps the exponential retry backoff.
	DefaultMaxRetryBackoff = 30 * time.Second

	// DefaultTimeout bounds a single HTTP request, body included.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies shelfcrawl in HTTP requests so that site
	// operators can recognize the traffic in their logs.
	DefaultUserAgent = "shelfcrawl/1.0 (+https://github.com/nao1215/shelfcrawl)"

	// DefaultMaxBodySize limits the response body size to read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultLogFormat is the log output format.
	DefaultLogFormat = LogFormatText

	// AppName is the application name used for XDG directory paths.
	AppName = "shelfcrawl"
)

// Checkpoint backends.
const (
	// BackendJSON stores the checkpoint in a single JSON document.
	BackendJSON = "json"

	// BackendSQLite stores the checkpoint in a SQLite database together with
	// the run history.
	BackendSQLite = "sqlite"
)

// Export formats.
const (
	// FormatCSV writes a delimited file with a header row.
	FormatCSV = "csv"

	// FormatMarkdown writes a Markdown table.
	FormatMarkdown = "markdown"

	// FormatJSON writes an array of objects.
	FormatJSON = "json"
)

// Log formats.
const (
	// LogFormatText writes logfmt-style lines.
	LogFormatText = "text"

	// LogFormatJSON writes one JSON object per line.
	LogFormatJSON = "json"
)

// Config holds all configuration options for shelfcrawl.
// It is populated from CLI flags and passed through the application rather
// than kept in global state.
type Config struct {
	// Origin bounds the crawl. Only links whose normalized form starts with
	// this origin are ever enqueued.
	Origin string

	// Seed is the first URL to visit on a fresh crawl.
	// Empty means Origin + DefaultSeedPath.
	Seed string

	// Backend selects the checkpoint store: BackendJSON or BackendSQLite.
	Backend string

	// StateFile is the JSON checkpoint path (BackendJSON only).
	StateFile string

	// DBDir is the directory holding the SQLite database (BackendSQLite only).
	// Defaults to the XDG data directory.
	DBDir string

	// OutputFile is the export path written when the crawl completes.
	OutputFile string

	// ExportFormat is one of FormatCSV, FormatMarkdown, FormatJSON.
	ExportFormat string

	// DelayMean and DelaySigma shape the randomized delay before each request.
	DelayMean  time.Duration
	DelaySigma time.Duration

	// RateLimit is a hard cap on requests per second across all workers.
	// 0 disables the cap; the randomized delay still applies.
	RateLimit float64

	// Workers is the number of concurrent fetch workers.
	Workers int

	// MaxRetries is the number of failed fetches before a URL is given up on.
	// 0 retries forever.
	MaxRetries int

	// RetryBackoff and MaxRetryBackoff shape the exponential retry wait.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	// RetryFailed requeues URLs from the failed bucket on start.
	RetryFailed bool

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxPages stops the run after this many processed URLs.
	// The crawl stays resumable. 0 means no limit.
	MaxPages int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// MetricsAddr, when set, serves Prometheus metrics on /metrics.
	MetricsAddr string

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is LogFormatText or LogFormatJSON.
	LogFormat string

	// ConfigFilePath is the site configuration file path.
	// If empty, the file is searched for (see FindConfigFile).
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the configuration file.
	SiteConfigs *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Origin:          DefaultOrigin,
		Backend:         DefaultBackend,
		StateFile:       DefaultStateFile,
		DBDir:           XDGDataDir(),
		OutputFile:      DefaultOutputFile,
		ExportFormat:    DefaultExportFormat,
		DelayMean:       DefaultDelayMean,
		DelaySigma:      DefaultDelaySigma,
		Workers:         DefaultWorkers,
		MaxRetries:      DefaultMaxRetries,
		RetryBackoff:    DefaultRetryBackoff,
		MaxRetryBackoff: DefaultMaxRetryBackoff,
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		LogFormat:       DefaultLogFormat,
	}
}

// SeedURL returns the configured seed, or the origin's default entry page.
func (c *Config) SeedURL() string {
	if c.Seed != "" {
		return c.Seed
	}
	return strings.TrimSuffix(c.Origin, "/") + DefaultSeedPath
}

// SiteConfig returns the merged site configuration for the configured origin.
func (c *Config) SiteConfig() SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(c.Origin)
}

// XDGDataDir returns the XDG data directory for shelfcrawl.
// On Linux: ~/.local/share/shelfcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for shelfcrawl.
// On Linux: ~/.config/shelfcrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Origin == "" {
		return ErrNoOrigin
	}
	if !isHTTPURL(c.Origin) {
		return ErrInvalidOrigin
	}
	if c.Seed != "" && !isHTTPURL(c.Seed) {
		return ErrInvalidSeed
	}

	switch c.Backend {
	case BackendJSON:
		if c.StateFile == "" {
			return ErrNoStateFile
		}
	case BackendSQLite:
		if c.DBDir == "" {
			return ErrNoStateFile
		}
	default:
		return ErrUnknownBackend
	}

	switch c.ExportFormat {
	case FormatCSV, FormatMarkdown, FormatJSON:
	default:
		return ErrUnknownExportFormat
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return ErrUnknownLogFormat
	}

	if c.DelayMean < 0 || c.DelaySigma < 0 {
		return ErrInvalidDelay
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RetryBackoff < 0 || c.MaxRetryBackoff < 0 {
		return ErrInvalidRetryBackoff
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// isHTTPURL reports whether s is an absolute http(s) URL with a host.
func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
