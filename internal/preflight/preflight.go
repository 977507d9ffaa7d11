package preflight

import (
	"context"

	"mixdown/internal/config"
	"mixdown/internal/toolchain"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the environment checks an assembly run depends on:
// toolchain binaries, writable working directories, free scratch space,
// and readability of every configured music asset.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range toolchain.CheckBinaries(toolchain.Requirements(cfg)) {
		detail := status.Detail
		if status.Available {
			detail = status.Command
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: detail})
	}

	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckFreeSpace("Scratch free space", cfg.Paths.ScratchDir, cfg.Preflight.MinFreeSpaceMiB))

	assets := []struct {
		name string
		path string
	}{
		{"Intro bed", cfg.Music.IntroBed},
		{"Transition bed", cfg.Music.TransitionBed},
		{"Outro bed", cfg.Music.OutroBed},
	}
	for _, asset := range assets {
		if asset.path == "" {
			continue
		}
		results = append(results, CheckAssetReadable(asset.name, asset.path))
	}
	return results
}

// Passed reports whether every check succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
