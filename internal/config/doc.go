// Package config loads and validates folio's TOML configuration.
//
// Defaults live in defaults.go so a missing config file always yields a
// working setup; Load merges the file over those defaults, normalizes paths
// (tilde expansion) and enum fields, then validates. Components receive the
// resulting *Config by injection rather than reading files themselves.
package config
