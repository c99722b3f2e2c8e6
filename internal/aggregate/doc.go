// Package aggregate floors joined readings into fixed-width time buckets and
// averages them per (bucket, sensor) and per bucket.
//
// Every aggregate field is averaged independently over its own non-missing
// inputs, so a reading without a concentration still contributes its wind.
// Output order is deterministic: bucket start ascending, then sensor id.
package aggregate
