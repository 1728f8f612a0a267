package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

var (
	// ErrUnexpectedStatus is wrapped by Result.Err for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrBodyTooLarge is wrapped by Result.Err when a body exceeds the size cap.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrInterrupted is wrapped by Result.Err when the context ended during
	// the politeness wait, before any request was sent.
	ErrInterrupted = errors.New("fetch interrupted")
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 5 * 1024 * 1024
)

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) Result
}

// Result is the outcome of a fetch.
type Result struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects. Equal to URL when there were none
	// or the request never completed.
	FinalURL string

	// StatusCode is the HTTP status, or zero if no response arrived.
	StatusCode int

	// ContentType is the response Content-Type header.
	ContentType string

	// Body is the decoded response body. Nil unless OK.
	Body []byte

	// Err describes why the fetch failed.
	Err error
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Options controls HTTP fetching behaviour.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Headers are extra request headers.
	Headers map[string]string

	// Cookie is sent as the Cookie header when not empty.
	Cookie string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// MaxBodyBytes caps the decoded body size. Defaults to 5MB.
	MaxBodyBytes int64

	// Pacer spaces out requests. Nil disables pacing.
	Pacer *Pacer

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client       *http.Client
	pacer        *Pacer
	userAgent    string
	cookie       string
	extraHeaders map[string]string
	maxBodyBytes int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher constructs an HTTP fetcher using the provided options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	headers := make(map[string]string, len(opts.Headers))
	maps.Copy(headers, opts.Headers)

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		pacer:        opts.Pacer,
		userAgent:    opts.UserAgent,
		cookie:       opts.Cookie,
		extraHeaders: headers,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Fetch waits for the pacer and then downloads rawURL.
//
// Cancelling ctx interrupts the wait only. Once the request is on the wire
// it runs to completion or until the request timeout, so a page the server
// already served is never thrown away.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) Result {
	res := Result{URL: rawURL, FinalURL: rawURL}

	if err := f.pacer.Wait(ctx); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrInterrupted, err)
		return res
	}

	httpReq, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, rawURL, nil)
	if err != nil {
		res.Err = fmt.Errorf("build request: %w", err)
		return res
	}
	f.setHeaders(httpReq)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		res.Err = fmt.Errorf("http fetch failed: %w", err)
		return res
	}

	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}
	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		res.Err = fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
		return res
	}

	body, err := f.readBody(resp)
	if err != nil {
		res.Err = err
		return res
	}
	res.Body = body
	return res
}

func (f *HTTPFetcher) setHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
	for k, v := range f.extraHeaders {
		req.Header.Set(k, v)
	}
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	// Setting Accept-Encoding by hand disables the transport's transparent
	// gzip handling, so every encoding is decoded here.
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, f.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, f.maxBodyBytes)
	}
	return body, nil
}
