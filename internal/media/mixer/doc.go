// Package mixer builds and runs the ffmpeg filtergraphs that combine audio
// streams during assembly: segment crossfades, ducked music beds, timeline
// mixing, and silence fills.
package mixer
