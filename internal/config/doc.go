// Package config provides configuration structures and utilities for
// shelfcrawl. It defines crawl, politeness, retry, checkpoint and export
// settings and loads per-site overrides from a YAML or TOML file.
package config
