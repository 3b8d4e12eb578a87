// Package config loads, normalizes, and validates boxd configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BOXD_LIST_URL. The Config type centralizes every knob the pipeline, the
// scheduler daemon, and the CLI need, so data/state directories and artifact
// locations are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute artifact paths, canonical log formats, and clear validation errors.
package config
