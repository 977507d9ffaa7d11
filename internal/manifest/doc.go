// Package manifest reads episode manifests: TOML files declaring the
// ordered sections of one episode, its output file, and optional music
// bed overrides.
package manifest
