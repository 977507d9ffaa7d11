// Package testsupport provides shared helpers for package tests: seeded
// configurations, stubbed toolchain binaries, and ledger stores backed by
// per-test temp directories.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mixdown/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.OutputDir = filepath.Join(base, "episodes")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "ledger.db")
	cfgVal.Normalization.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMusicBeds points all three bed assets at files created under the
// test's temp directory.
func WithMusicBeds() ConfigOption {
	return func(b *configBuilder) {
		bedDir := filepath.Join(b.baseDir, "beds")
		for name, field := range map[string]*string{
			"intro.wav":      &b.cfg.Music.IntroBed,
			"transition.wav": &b.cfg.Music.TransitionBed,
			"outro.wav":      &b.cfg.Music.OutroBed,
		} {
			path := filepath.Join(bedDir, name)
			WriteFile(b.t, path, 64)
			*field = path
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names,
// points the toolchain config at them, and prepends their directory to
// PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "ffmpeg":
				b.cfg.Toolchain.FFmpeg = target
			case "ffprobe":
				b.cfg.Toolchain.FFprobe = target
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
