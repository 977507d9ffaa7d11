package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMusic(); err != nil {
		return err
	}
	c.normalizeToolchain()
	c.normalizeNormalization()
	c.normalizeOutput()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMusic() error {
	var err error
	if c.Music.IntroBed = strings.TrimSpace(c.Music.IntroBed); c.Music.IntroBed != "" {
		if c.Music.IntroBed, err = expandPath(c.Music.IntroBed); err != nil {
			return fmt.Errorf("music.intro_bed: %w", err)
		}
	}
	if c.Music.TransitionBed = strings.TrimSpace(c.Music.TransitionBed); c.Music.TransitionBed != "" {
		if c.Music.TransitionBed, err = expandPath(c.Music.TransitionBed); err != nil {
			return fmt.Errorf("music.transition_bed: %w", err)
		}
	}
	if c.Music.OutroBed = strings.TrimSpace(c.Music.OutroBed); c.Music.OutroBed != "" {
		if c.Music.OutroBed, err = expandPath(c.Music.OutroBed); err != nil {
			return fmt.Errorf("music.outro_bed: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeToolchain() {
	if strings.TrimSpace(c.Toolchain.FFmpeg) == "" {
		c.Toolchain.FFmpeg = defaultFFmpegBinary
	}
	if strings.TrimSpace(c.Toolchain.FFprobe) == "" {
		c.Toolchain.FFprobe = defaultFFprobeBinary
	}
	if c.Toolchain.ProbeTimeoutSeconds <= 0 {
		c.Toolchain.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
	if c.Toolchain.EncodeTimeoutSeconds <= 0 {
		c.Toolchain.EncodeTimeoutSeconds = defaultEncodeTimeoutSeconds
	}
}

func (c *Config) normalizeNormalization() {
	if c.Normalization.Workers <= 0 {
		c.Normalization.Workers = defaultNormalizeWorkers
	}
	if c.Normalization.ToleranceLU <= 0 {
		c.Normalization.ToleranceLU = defaultToleranceLU
	}
}

func (c *Config) normalizeOutput() {
	if strings.TrimSpace(c.Output.Format) == "" {
		c.Output.Format = defaultOutputFormat
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if strings.TrimSpace(c.Output.Bitrate) == "" {
		c.Output.Bitrate = defaultOutputBitrate
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
}
