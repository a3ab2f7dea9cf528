// Package config loads, validates, and normalizes coverdex configuration
// from TOML files with sensible defaults for every key.
package config
