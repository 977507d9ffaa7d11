// Package loudness measures EBU R128 loudness through ffmpeg's loudnorm
// filter and computes the two-pass gain correction.
//
// The loudnorm analysis pass prints its statistics as a JSON object inside
// ffmpeg's stderr log stream; ParseStats extracts that delimited payload
// while tolerating the surrounding noise. ComputeGain turns a Measurement
// into the second-pass volume correction, clamping to a true-peak-limited
// gain when the full offset would violate the configured peak ceiling.
package loudness
