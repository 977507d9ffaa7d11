// Package probe provides a typed wrapper around ffprobe JSON output.
//
// Inspect returns the raw decoded structure; Probe distills it into the
// MediaInfo summary the assembler consumes (duration, size, sample rate,
// channels, codec) and rejects files without an audio stream.
package probe
