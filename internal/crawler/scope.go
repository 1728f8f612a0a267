package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// normalizeFlags are the URL normalizations applied before comparing URLs.
// They never change which resource a URL names.
const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveDotSegments | purell.FlagRemoveFragment

// Scope decides which URLs belong to the crawl.
//
// A URL is in scope when its normalized form starts with the normalized
// origin followed by the end of the string, "/", "?" or "#". That keeps
// http://example.test from claiming http://example.test.evil/. Paths are
// then checked against the ignore and follow glob patterns.
type Scope struct {
	origin         string
	ignorePatterns []string
	followPatterns []string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.followPatterns = patterns
	}
}

// NewScope creates a Scope for the given origin.
func NewScope(origin string, opts ...ScopeOption) (*Scope, error) {
	normalized, err := Normalize(origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	s := &Scope{origin: strings.TrimSuffix(normalized, "/")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Origin returns the normalized origin.
func (s *Scope) Origin() string {
	return s.origin
}

// Normalize returns the canonical form of an absolute http(s) URL: fragment
// removed, scheme and host lower-cased, default port dropped, escapes
// normalized and dot segments resolved.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	return purell.NormalizeURL(u, normalizeFlags), nil
}

// Resolve normalizes rawURL and reports whether it is in scope.
func (s *Scope) Resolve(rawURL string) (string, bool) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", false
	}
	return normalized, s.Contains(normalized) && s.shouldCrawl(normalized)
}

// Contains reports whether a normalized URL lies under the origin.
func (s *Scope) Contains(normalized string) bool {
	rest, ok := strings.CutPrefix(normalized, s.origin)
	if !ok {
		return false
	}
	return rest == "" || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}

// shouldCrawl checks a URL against the ignore and follow patterns.
//
// Logic:
//  1. If the path matches any ignore pattern, skip it
//  2. If follow patterns are set and the path matches none, skip it
//  3. Otherwise, crawl it
func (s *Scope) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/catalogue/*" matches "/catalogue/page-2.html"
//   - "*.jpg" matches "/media/cache/cover.jpg"
//   - "/page-?.html" matches "/page-1.html"
func matchPattern(pattern, path string) bool {
	// "/admin/*" matches everything below /admin, not just one segment.
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Patterns without a slash also match the last path element.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
