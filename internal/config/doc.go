// Package config loads, normalizes and validates the TOML configuration for
// mixdown.
//
// Load resolves the config path (explicit flag, then
// ~/.config/mixdown/config.toml, then ./mixdown.toml), decodes it over the
// defaults from Default(), expands tilde paths, and validates the result.
// A missing file is not an error; the defaults are used.
package config
