// Package config loads, normalizes, and validates labtrace configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LABTRACE_OPERATOR. The Config type centralizes every knob the CLI and core
// components need, so data directories and audit attribution are discovered in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
