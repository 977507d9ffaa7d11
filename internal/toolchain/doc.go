// Package toolchain is the engine's only gateway to external processes.
//
// Runner executes ffmpeg/ffprobe invocations with a per-invocation timeout,
// guaranteed child termination on every exit path, and full stdout/stderr
// capture. Failures are tagged with the services sentinels so callers can
// classify timeout vs. non-zero exit without inspecting message text.
//
// CheckBinaries mirrors the status surface the CLI shows before a run.
package toolchain
