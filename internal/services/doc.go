// Package services defines shared utilities consumed by the pipeline stages
// and command-line tools.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and dates for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into input, rendering, and external tool errors, and map them onto
//     process exit codes.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
