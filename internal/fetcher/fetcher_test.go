package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

const page = `<html><body><h1>Tipping the Velvet</h1></body></html>`

func TestHTTPFetcher_Fetch(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher(Options{
		UserAgent: "shelfcrawl-test/1.0",
		Cookie:    "session=abc",
		Headers:   map[string]string{"X-Test": "yes"},
	})

	res := f.Fetch(context.Background(), srv.URL+"/index.html")
	if !res.OK() {
		t.Fatalf("Fetch() error = %v", res.Err)
	}
	if string(res.Body) != page {
		t.Errorf("Body = %q, want %q", res.Body, page)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", res.ContentType)
	}
	if res.FinalURL != srv.URL+"/index.html" {
		t.Errorf("FinalURL = %q", res.FinalURL)
	}

	for key, want := range map[string]string{
		"User-Agent":      "shelfcrawl-test/1.0",
		"Cookie":          "session=abc",
		"X-Test":          "yes",
		"Accept-Encoding": "gzip, deflate, br",
	} {
		if got := gotHeaders.Get(key); got != want {
			t.Errorf("header %s = %q, want %q", key, got, want)
		}
	}
}

func TestHTTPFetcher_DecodesBodies(t *testing.T) {
	t.Parallel()

	gzipBody := func() []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(page))
		_ = zw.Close()
		return buf.Bytes()
	}
	brotliBody := func() []byte {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte(page))
		_ = bw.Close()
		return buf.Bytes()
	}

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{name: "gzip", encoding: "gzip", body: gzipBody()},
		{name: "brotli", encoding: "br", body: brotliBody()},
		{name: "identity", encoding: "", body: []byte(page)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				_, _ = w.Write(tt.body)
			}))
			t.Cleanup(srv.Close)

			res := NewHTTPFetcher(Options{}).Fetch(context.Background(), srv.URL)
			if !res.OK() {
				t.Fatalf("Fetch() error = %v", res.Err)
			}
			if string(res.Body) != page {
				t.Errorf("Body = %q, want %q", res.Body, page)
			}
		})
	}
}

func TestHTTPFetcher_Failures(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/large", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	})
	mux.HandleFunc("/badgzip", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write([]byte("not gzip at all"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher(Options{MaxBodyBytes: 1024})

	tests := []struct {
		name       string
		url        string
		wantErr    error
		wantStatus int
	}{
		{name: "404", url: srv.URL + "/missing", wantErr: ErrUnexpectedStatus, wantStatus: http.StatusNotFound},
		{name: "500", url: srv.URL + "/broken", wantErr: ErrUnexpectedStatus, wantStatus: http.StatusInternalServerError},
		{name: "body over limit", url: srv.URL + "/large", wantErr: ErrBodyTooLarge, wantStatus: http.StatusOK},
		{name: "corrupt gzip", url: srv.URL + "/badgzip", wantStatus: http.StatusOK},
		{name: "invalid url", url: "http://[::1", wantStatus: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := f.Fetch(context.Background(), tt.url)
			if res.OK() {
				t.Fatal("Fetch() should fail")
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Fetch() error = %v, want %v", res.Err, tt.wantErr)
			}
			if errors.Is(res.Err, ErrInterrupted) {
				t.Errorf("Fetch() error = %v should not be an interruption", res.Err)
			}
			if res.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if res.Body != nil {
				t.Errorf("Body should be nil on failure, got %d bytes", len(res.Body))
			}
		})
	}
}

func TestHTTPFetcher_FollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old.html", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.html", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	res := NewHTTPFetcher(Options{}).Fetch(context.Background(), srv.URL+"/old.html")
	if !res.OK() {
		t.Fatalf("Fetch() error = %v", res.Err)
	}
	if res.URL != srv.URL+"/old.html" {
		t.Errorf("URL = %q", res.URL)
	}
	if res.FinalURL != srv.URL+"/new.html" {
		t.Errorf("FinalURL = %q, want %q", res.FinalURL, srv.URL+"/new.html")
	}
}

func TestHTTPFetcher_Interrupted(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	t.Run("cancelled during the politeness wait", func(t *testing.T) {
		f := NewHTTPFetcher(Options{Pacer: NewPacer(time.Hour, 0, 0)})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		res := f.Fetch(ctx, srv.URL)
		if !errors.Is(res.Err, ErrInterrupted) {
			t.Fatalf("Fetch() error = %v, want ErrInterrupted", res.Err)
		}
		if n := hits.Load(); n != 0 {
			t.Errorf("server was contacted %d times, want 0", n)
		}
	})

	t.Run("cancelled during the request", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(60 * time.Millisecond)
			_, _ = w.Write([]byte(page))
		}))
		t.Cleanup(slow.Close)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		// The request is already on the wire, so it completes.
		res := NewHTTPFetcher(Options{}).Fetch(ctx, slow.URL)
		if !res.OK() {
			t.Fatalf("Fetch() error = %v, want the in-flight request to complete", res.Err)
		}
		if string(res.Body) != page {
			t.Errorf("Body = %q", res.Body)
		}
	})
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	res := NewHTTPFetcher(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	if res.OK() {
		t.Fatal("Fetch() should time out")
	}
	if errors.Is(res.Err, ErrInterrupted) {
		t.Errorf("a request timeout is a fetch failure, not an interruption: %v", res.Err)
	}
}
