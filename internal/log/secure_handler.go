package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"secret":              true,
	"token":               true,
	"api_key":             true,
	"apikey":              true,
	"session":             true,
	"session_id":          true,
	"sessionid":           true,
	"private_key":         true,
}

// sensitiveKeywords are substrings that mark a key or query parameter as a
// credential. The bare word "key" is left out on purpose: it matches
// far too many harmless names.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "session", "cookie", "credential", "signature",
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and masks credentials in attributes
// before passing records on.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the underlying handler handles records at level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given (sanitized) attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr masks a single attribute, recursing into groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isSensitiveName(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		if masked, ok := sanitizeURL(a.Value.String()); ok {
			return slog.String(a.Key, masked)
		}
	}

	return a
}

// isSensitiveName reports whether a key or parameter name names a credential.
func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	if sensitiveKeys[lower] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// sanitizeURL masks the userinfo password and credential-like query values
// of an absolute URL. It returns false when s is not an absolute URL or
// nothing needed masking.
func sanitizeURL(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		query := u.Query()
		for name := range query {
			if isSensitiveName(name) {
				query.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = query.Encode()
		}
	}

	if !changed {
		return "", false
	}
	// Keep the mask readable instead of percent-encoded.
	return strings.ReplaceAll(u.String(), url.QueryEscape(MaskValue), MaskValue), true
}

// Options configures NewSecureLogger.
type Options struct {
	// Verbose lowers the level to Debug.
	Verbose bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// Level is the level used when Verbose is false.
	// The zero value is slog.LevelInfo.
	Level slog.Level
}

// NewSecureLogger creates a slog.Logger writing to w through a SecureHandler.
func NewSecureLogger(w io.Writer, opts Options) *slog.Logger {
	level := opts.Level
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(NewSecureHandler(handler))
}
