// Package preflight verifies the host environment before an assembly run:
// toolchain binaries on the path, writable scratch and output directories,
// minimum free disk space, and readable music assets.
package preflight
