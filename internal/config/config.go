package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Toolchain contains the external audio toolchain configuration.
type Toolchain struct {
	FFmpeg               string `toml:"ffmpeg"`
	FFprobe              string `toml:"ffprobe"`
	ProbeTimeoutSeconds  int    `toml:"probe_timeout_seconds"`
	EncodeTimeoutSeconds int    `toml:"encode_timeout_seconds"`
}

// Normalization configures two-pass loudness correction. Targets follow
// EBU R128; voice and music carry independent targets.
type Normalization struct {
	Enabled bool `toml:"enabled"`
	// VoiceTargetLUFS is the integrated loudness target for voice sections.
	VoiceTargetLUFS float64 `toml:"voice_target_lufs"`
	// MusicTargetLUFS is the integrated loudness target for music beds.
	MusicTargetLUFS float64 `toml:"music_target_lufs"`
	// MaxTruePeakDB caps reconstructed sample peaks; gain is clamped so this
	// ceiling is never exceeded even when the loudness target is missed.
	MaxTruePeakDB float64 `toml:"max_true_peak_db"`
	// ToleranceLU is the accepted deviation from target after correction.
	ToleranceLU float64 `toml:"tolerance_lu"`
	// FallbackToSource keeps the raw element when its loudness pass fails
	// instead of failing the whole run.
	FallbackToSource bool `toml:"fallback_to_source"`
	// Workers bounds concurrent normalization processes.
	Workers int `toml:"workers"`
}

// Assembly configures section sequencing, transitions and ducking.
type Assembly struct {
	TransitionSeconds      float64 `toml:"transition_seconds"`
	SilenceFallbackSeconds float64 `toml:"silence_fallback_seconds"`
	CrossfadeSeconds       float64 `toml:"crossfade_seconds"`
	DuckVolume             float64 `toml:"duck_volume"`
	DuckFadeSeconds        float64 `toml:"duck_fade_seconds"`
	SampleRate             int     `toml:"sample_rate"`
	Channels               int     `toml:"channels"`
}

// Music points at the static bed assets. Empty paths are explicit absence:
// transitions degrade to silence, intro/outro sections stay dry.
type Music struct {
	IntroBed      string `toml:"intro_bed"`
	TransitionBed string `toml:"transition_bed"`
	OutroBed      string `toml:"outro_bed"`
}

// Output configures the final artifact encoding.
type Output struct {
	Format  string `toml:"format"`
	Bitrate string `toml:"bitrate"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Preflight contains thresholds for pre-run environment checks.
type Preflight struct {
	MinFreeSpaceMiB int64 `toml:"min_free_space_mib"`
}

// Config encapsulates all configuration values for mixdown.
//
// Configuration sections by subsystem:
//   - Paths: scratch, output, log and ledger locations
//   - Toolchain: ffmpeg/ffprobe binaries and per-invocation timeouts
//   - Normalization: loudness targets, peak ceiling, fallback policy, workers
//   - Assembly: transition, crossfade and ducking policy
//   - Music: static bed asset paths
//   - Output: final artifact format and bitrate
//   - Logging: log format and level
//   - Preflight: environment check thresholds
type Config struct {
	Paths         Paths         `toml:"paths"`
	Toolchain     Toolchain     `toml:"toolchain"`
	Normalization Normalization `toml:"normalization"`
	Assembly      Assembly      `toml:"assembly"`
	Music         Music         `toml:"music"`
	Output        Output        `toml:"output"`
	Logging       Logging       `toml:"logging"`
	Preflight     Preflight     `toml:"preflight"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mixdown/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mixdown.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories an assembly run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.LedgerPath); strings.TrimSpace(c.Paths.LedgerPath) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory %q: %w", dir, err)
		}
	}
	return nil
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
