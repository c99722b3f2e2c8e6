// Package dispatch runs the frame composer over every frame of a run.
//
// Three modes are supported: sequential (index order), parallel (batches of
// independent frames on a fixed worker count), and external (one JSON job
// descriptor handed to a separate renderer process). Frame file names carry
// the zero-padded index, so completion order never matters.
package dispatch
