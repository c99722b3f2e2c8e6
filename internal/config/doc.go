// Package config loads, normalizes, and validates ufpmap configuration data.
//
// It supplies repository defaults (including the East Boston sensor network),
// expands user paths, reads TOML files, and honours environment fallbacks such
// as UFPMAP_DATA and OPENSKY_USERNAME. The Config type centralizes every knob
// the pipeline and CLI need so data sources, render styling, and encoder
// policy are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
