// Package runstore records pipeline runs in a SQLite ledger.
//
// Each run moves through loaded, filtered, aggregated, scaled, rendered,
// encoded, and optionally cleaned, or stops at failed. The ledger backs the
// status and runs commands and lets operators see why a date did not produce
// a video. Lock guards an output directory so concurrent runs never write
// the same frames.
package runstore
