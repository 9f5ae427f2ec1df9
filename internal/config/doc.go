// Package config loads, normalizes, and validates trendclip bootstrap
// configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. Bootstrap configuration covers
// process-level concerns only; runtime settings the dashboard mutates live in
// the settings store.
//
// Always obtain configuration through this package so downstream code
// receives sanitized paths, canonical log formats, and clear validation
// errors.
package config
