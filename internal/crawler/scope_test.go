package crawler

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "already normal", input: "http://example.test/a.html", want: "http://example.test/a.html"},
		{name: "fragment removed", input: "http://example.test/a.html#reviews", want: "http://example.test/a.html"},
		{name: "scheme and host lower-cased", input: "HTTP://Example.TEST/A.html", want: "http://example.test/A.html"},
		{name: "default port removed", input: "http://example.test:80/a.html", want: "http://example.test/a.html"},
		{name: "dot segments resolved", input: "http://example.test/catalogue/../index.html", want: "http://example.test/index.html"},
		{name: "empty query separator removed", input: "http://example.test/a.html?", want: "http://example.test/a.html"},
		{name: "query kept", input: "http://example.test/search?q=poetry", want: "http://example.test/search?q=poetry"},
		{name: "https kept", input: "https://example.test/", want: "https://example.test/"},
		{name: "relative URL rejected", input: "/a.html", wantErr: true},
		{name: "mailto rejected", input: "mailto:info@example.test", wantErr: true},
		{name: "ftp rejected", input: "ftp://example.test/file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Normalize(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("Normalize(%q) error = %v, want ErrInvalidURL", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestScope_Resolve(t *testing.T) {
	t.Parallel()

	scope, err := NewScope("http://example.test")
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}

	tests := []struct {
		name   string
		input  string
		want   string
		wantIn bool
	}{
		{name: "page under origin", input: "http://example.test/a.html", want: "http://example.test/a.html", wantIn: true},
		{name: "origin root", input: "http://example.test", want: "http://example.test", wantIn: true},
		{name: "query on root", input: "http://example.test?page=2", want: "http://example.test?page=2", wantIn: true},
		{name: "other host", input: "http://other.test/x", want: "http://other.test/x", wantIn: false},
		{name: "host with origin as prefix", input: "http://example.test.evil/x", want: "http://example.test.evil/x", wantIn: false},
		{name: "origin with port suffix", input: "http://example.test:8080/x", want: "http://example.test:8080/x", wantIn: false},
		{name: "https is a different origin", input: "https://example.test/a.html", want: "https://example.test/a.html", wantIn: false},
		{name: "fragment variant", input: "http://EXAMPLE.test/a.html#top", want: "http://example.test/a.html", wantIn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, in := scope.Resolve(tt.input)
			if in != tt.wantIn {
				t.Errorf("Resolve(%q) in scope = %v, want %v", tt.input, in, tt.wantIn)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestScope_OriginWithPath(t *testing.T) {
	t.Parallel()

	scope, err := NewScope("http://example.test/catalogue/")
	if err != nil {
		t.Fatal(err)
	}
	if scope.Origin() != "http://example.test/catalogue" {
		t.Errorf("Origin() = %q", scope.Origin())
	}

	for input, want := range map[string]bool{
		"http://example.test/catalogue/page-2.html": true,
		"http://example.test/catalogue":             true,
		"http://example.test/catalogue-old/x.html":  false,
		"http://example.test/index.html":            false,
	} {
		if _, got := scope.Resolve(input); got != want {
			t.Errorf("Resolve(%q) in scope = %v, want %v", input, got, want)
		}
	}
}

func TestScope_Patterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   []ScopeOption
		url    string
		wantIn bool
	}{
		{
			name:   "no patterns allow all",
			url:    "http://example.test/catalogue/a.html",
			wantIn: true,
		},
		{
			name:   "ignore pattern matches",
			opts:   []ScopeOption{WithIgnorePatterns([]string{"/static/*"})},
			url:    "http://example.test/static/style.css",
			wantIn: false,
		},
		{
			name:   "ignore extension pattern matches",
			opts:   []ScopeOption{WithIgnorePatterns([]string{"*.jpg"})},
			url:    "http://example.test/media/cache/cover.jpg",
			wantIn: false,
		},
		{
			name:   "follow pattern matches",
			opts:   []ScopeOption{WithFollowPatterns([]string{"/catalogue/*"})},
			url:    "http://example.test/catalogue/page-2.html",
			wantIn: true,
		},
		{
			name:   "follow pattern does not match",
			opts:   []ScopeOption{WithFollowPatterns([]string{"/catalogue/*"})},
			url:    "http://example.test/about.html",
			wantIn: false,
		},
		{
			name: "ignore takes precedence over follow",
			opts: []ScopeOption{
				WithFollowPatterns([]string{"/catalogue/*"}),
				WithIgnorePatterns([]string{"/catalogue/category/*"}),
			},
			url:    "http://example.test/catalogue/category/books_1/index.html",
			wantIn: false,
		},
		{
			name:   "root path matched as slash",
			opts:   []ScopeOption{WithFollowPatterns([]string{"/"})},
			url:    "http://example.test",
			wantIn: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scope, err := NewScope("http://example.test", tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if _, got := scope.Resolve(tt.url); got != tt.wantIn {
				t.Errorf("Resolve(%q) in scope = %v, want %v", tt.url, got, tt.wantIn)
			}
		})
	}
}

func TestNewScope_InvalidOrigin(t *testing.T) {
	t.Parallel()

	for _, origin := range []string{"", "books.toscrape.com", "ftp://example.test"} {
		if _, err := NewScope(origin); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("NewScope(%q) error = %v, want ErrInvalidURL", origin, err)
		}
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"prefix match", "/catalogue/*", "/catalogue/page-2.html", true},
		{"prefix exact", "/catalogue/*", "/catalogue", true},
		{"prefix no match", "/catalogue/*", "/static/style.css", false},
		{"prefix partial no match", "/catalogue/*", "/catalogues", false},
		{"nested prefix", "/catalogue/*", "/catalogue/category/books_1/index.html", true},

		{"extension", "*.jpg", "/media/cover.jpg", true},
		{"extension nested", "*.jpg", "/a/b/c/cover.jpg", true},
		{"extension no match", "*.jpg", "/media/cover.png", false},

		{"exact match", "/index.html", "/index.html", true},
		{"exact no match", "/index.html", "/about.html", false},

		{"single character wildcard", "/page-?.html", "/page-1.html", true},
		{"single character wildcard no match", "/page-?.html", "/page-10.html", false},

		{"base name pattern", "page-*", "/catalogue/page-3.html", true},
		{"root path", "/", "/", true},
		{"root no match prefix", "/catalogue/*", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
