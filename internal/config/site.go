package config

import "strings"

// FieldRule describes how one record field is extracted from a page.
type FieldRule struct {
	// Name is the record field name (and export column).
	Name string `yaml:"name" toml:"name"`

	// Selector is a CSS selector; the first match is used.
	Selector string `yaml:"selector" toml:"selector"`

	// Attr reads an attribute instead of the element text.
	Attr string `yaml:"attr,omitempty" toml:"attr,omitempty"`

	// Pattern is a regular expression applied to the value.
	// When it has a capture group, group 1 becomes the value.
	Pattern string `yaml:"pattern,omitempty" toml:"pattern,omitempty"`

	// Optional fields may be missing without voiding the record.
	Optional bool `yaml:"optional,omitempty" toml:"optional,omitempty"`
}

// SiteConfig holds site-specific configuration for one origin.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty" toml:"cookie,omitempty"`

	// Headers are extra HTTP headers to send with every request.
	Headers map[string]string `yaml:"headers,omitempty" toml:"headers,omitempty"`

	// IgnorePatterns are URL path glob patterns never to enqueue.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty" toml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict enqueuing to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty" toml:"followPatterns,omitempty"`

	// Fields replace the default extraction rules.
	Fields []FieldRule `yaml:"fields,omitempty" toml:"fields,omitempty"`
}

// File represents the structure of the .shelfcrawl configuration file.
type File struct {
	// Sites maps an origin (with or without scheme) to its configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty" toml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty" toml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for an origin merged over the
// defaults. The origin is matched as given first, then without its scheme
// and trailing slash.
func (cf *File) GetSiteConfig(origin string) SiteConfig {
	result := cf.Defaults

	siteConfig, ok := cf.Sites[origin]
	if !ok {
		siteConfig, ok = cf.Sites[trimOrigin(origin)]
	}
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(siteConfig.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range siteConfig.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	if len(siteConfig.Fields) > 0 {
		result.Fields = siteConfig.Fields
	}

	return result
}

// trimOrigin strips the scheme and trailing slash from an origin.
func trimOrigin(origin string) string {
	for _, prefix := range []string{"http://", "https://"} {
		origin = strings.TrimPrefix(origin, prefix)
	}
	return strings.TrimSuffix(origin, "/")
}
