// Package render composes one raster image per frame.
//
// A Composer is built once per run from read-only inputs (size, extent,
// concentration scale, style, and background) and then draws frames by
// folding an ordered list of layers over a fresh canvas. Layers with nothing
// to draw for a frame are no-ops. Compose and Save are safe to call from
// several goroutines at once.
package render
