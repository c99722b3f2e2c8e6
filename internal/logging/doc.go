// Package logging assembles structured slog loggers and formatting helpers used
// across ufpmap.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can automatically
// tag log lines with run IDs, stages, and dates. The package also provides a
// no-op logger for tests and a progress sampler for frame rendering loops.
package logging
