package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNormalization(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validateMusic(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNormalization() error {
	n := c.Normalization
	if n.VoiceTargetLUFS > 0 || n.VoiceTargetLUFS < -70 {
		return fmt.Errorf("normalization.voice_target_lufs %.1f outside plausible range [-70, 0]", n.VoiceTargetLUFS)
	}
	if n.MusicTargetLUFS > 0 || n.MusicTargetLUFS < -70 {
		return fmt.Errorf("normalization.music_target_lufs %.1f outside plausible range [-70, 0]", n.MusicTargetLUFS)
	}
	if n.MaxTruePeakDB > 0 {
		return errors.New("normalization.max_true_peak_db must not be positive")
	}
	if n.Workers > 64 {
		return fmt.Errorf("normalization.workers %d exceeds limit 64", n.Workers)
	}
	return nil
}

func (c *Config) validateAssembly() error {
	a := c.Assembly
	if a.TransitionSeconds < 0 {
		return errors.New("assembly.transition_seconds must not be negative")
	}
	if a.SilenceFallbackSeconds <= 0 {
		return errors.New("assembly.silence_fallback_seconds must be positive")
	}
	if a.DuckVolume < 0 || a.DuckVolume > 1 {
		return errors.New("assembly.duck_volume must be between 0 and 1")
	}
	if a.CrossfadeSeconds < 0 {
		// Negative values degrade to a hard concatenation downstream, but a
		// negative config value is almost certainly a typo.
		return errors.New("assembly.crossfade_seconds must not be negative")
	}
	if a.SampleRate <= 0 {
		return errors.New("assembly.sample_rate must be positive")
	}
	if a.Channels != 1 && a.Channels != 2 {
		return errors.New("assembly.channels must be 1 or 2")
	}
	return nil
}

func (c *Config) validateMusic() error {
	for name, path := range map[string]string{
		"music.intro_bed":      c.Music.IntroBed,
		"music.transition_bed": c.Music.TransitionBed,
		"music.outro_bed":      c.Music.OutroBed,
	} {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s: %q is a directory", name, path)
		}
	}
	return nil
}

func (c *Config) validateOutput() error {
	switch c.Output.Format {
	case "mp3", "aac", "opus", "flac", "wav":
	default:
		return fmt.Errorf("output.format: unsupported value %q", c.Output.Format)
	}
	if strings.TrimSpace(c.Output.Bitrate) == "" {
		return errors.New("output.bitrate must be set")
	}
	return nil
}
