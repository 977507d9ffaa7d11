// Package normalize implements two-pass loudness correction for episode
// elements: an ffmpeg loudnorm analysis pass, an in-process gain computation
// with a true-peak clamp, and a single correction encode into the working
// format. A bounded worker pool corrects batches concurrently.
package normalize
