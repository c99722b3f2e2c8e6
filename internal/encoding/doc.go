// Package encoding turns a directory of numbered frame images into a video.
//
// FFmpeg is invoked with the configured hardware encoder first; on failure a
// single retry uses the software encoder. The output is verified (and probed
// with ffprobe when available) before frames may be cleaned up. An optional
// AV1 archive copy is produced through the drapto library.
package encoding
