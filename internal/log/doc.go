// Package log provides a slog handler that keeps request credentials out of
// crawl logs.
//
// shelfcrawl can send cookies and custom headers configured per site, and
// crawled links sometimes carry session tokens in their query strings. The
// SecureHandler masks both before a record reaches the underlying handler:
//   - attributes whose key names a credential (cookie, authorization, token...)
//   - userinfo passwords in URL-valued attributes
//   - credential-like query parameters in URL-valued attributes
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Info("fetching", "url", "http://example.test/?session=abc")
//	// url=http://example.test/?session=***REDACTED***
package log
