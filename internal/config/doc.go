// Package config loads, validates, and normalizes scriptcheck configuration.
//
// Configuration lives in a single TOML file; Load resolves it from an
// explicit path, ~/.config/scriptcheck/config.toml, or ./scriptcheck.toml in
// that order, layering file values over compiled-in defaults. The resulting
// Config is immutable after Load and handed to every component at
// construction.
package config
