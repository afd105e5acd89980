// Package config loads, normalizes, and validates bindery configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the CLI and engines need: data/log directories, the file-operations
// service endpoint, locality discovery, and desktop launcher settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
