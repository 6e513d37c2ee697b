// Package config loads, normalizes, and validates snaplapse configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SNAPLAPSE_ROOT_DIR. The Config type centralizes every knob the daemon and
// CLI need so the capture interval, JPEG quality levels, dedup strategy, and
// timelapse encoding parameters are resolved in one pass at startup.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
