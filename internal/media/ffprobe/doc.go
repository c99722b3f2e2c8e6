// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: video stream properties (codec, size, frame rate, frame count)
//   - Format: container-level metadata (duration, size)
//
// Inspect executes ffprobe and returns the parsed Result; the encoder uses it
// to verify that a freshly written video holds the expected frames.
package ffprobe
