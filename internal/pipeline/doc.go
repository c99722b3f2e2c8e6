// Package pipeline wires the rendering stages together for one or more
// calendar dates.
//
// A run moves through load, filter, aggregate, scale, render, encode, and
// optionally cleanup. Each stage is a total function of the previous stage's
// output; the stage runner logs stage_start, stage_complete, and
// stage_failure events and records every transition in the run ledger.
// Nothing is written to the output directory until the data for the date
// has been filtered, joined, and scaled successfully.
package pipeline
