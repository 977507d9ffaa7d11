package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mixdown/internal/assembly"
	"mixdown/internal/config"
	"mixdown/internal/ledger"
	"mixdown/internal/logging"
	"mixdown/internal/manifest"
	"mixdown/internal/preflight"
)

// orphanScratchMaxAge is how old a scratch directory must be before the
// pre-run sweep reclaims it.
const orphanScratchMaxAge = 24 * time.Hour

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var titleFlag string
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "assemble <manifest.toml>",
		Short: "Assemble an episode from a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			runner, err := ctx.runner()
			if err != nil {
				return err
			}

			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			runCfg := *cfg
			m.ApplyMusic(&runCfg)
			sections, err := m.AssemblySections()
			if err != nil {
				return err
			}

			title := strings.TrimSpace(titleFlag)
			if title == "" {
				title = m.Title
			}
			output := strings.TrimSpace(outputFlag)
			if output == "" {
				output = m.Output
			}
			if output == "" {
				output = defaultOutputPath(&runCfg, args[0])
			}

			if removed, err := assembly.SweepOrphans(runCfg.Paths.ScratchDir, orphanScratchMaxAge, logger); err != nil {
				logger.Warn("scratch sweep failed", logging.Error(err))
			} else if removed > 0 {
				logger.Info("reclaimed orphaned scratch directories", logging.Int("count", removed))
			}

			if !skipPreflight {
				results := preflight.RunAll(cmd.Context(), &runCfg)
				if !preflight.Passed(results) {
					fmt.Fprintln(cmd.OutOrStdout(), renderPreflight(results))
					return errors.New("preflight checks failed (use --skip-preflight to override)")
				}
			}

			store, err := ledger.Open(&runCfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runID := uuid.NewString()
			if _, err := store.StartRun(cmd.Context(), runID, title); err != nil {
				logger.Warn("failed to record run start", logging.Error(err))
			}

			assembler := assembly.New(&runCfg, runner, logger)
			result, assembleErr := assembler.Assemble(cmd.Context(), assembly.Request{
				RunID:      runID,
				Title:      title,
				Sections:   sections,
				OutputPath: output,
			})
			if assembleErr != nil {
				stage := failingStage(assembleErr)
				if err := store.FailRun(cmd.Context(), runID, stage, assembleErr); err != nil {
					logger.Warn("failed to record run failure", logging.Error(err))
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "assembly failed during %s\n", stage)
				return assembleErr
			}

			if err := store.CompleteRun(cmd.Context(), result); err != nil {
				logger.Warn("failed to record run completion", logging.Error(err))
			}

			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Destination for the episode file")
	cmd.Flags().StringVar(&titleFlag, "title", "", "Episode title (defaults to the manifest title)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before assembling")
	return cmd
}

func defaultOutputPath(cfg *config.Config, manifestPath string) string {
	name := strings.TrimSuffix(filepath.Base(manifestPath), filepath.Ext(manifestPath))
	return filepath.Join(cfg.Paths.OutputDir, name+"."+cfg.Output.Format)
}

func failingStage(err error) string {
	var stageErr *assembly.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage.String()
	}
	return "unknown"
}

func printResult(cmd *cobra.Command, result *assembly.EpisodeAssembly) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Episode written to %s\n", result.OutputPath)
	fmt.Fprintf(out, "Duration %s, size %s, integrated loudness %.1f LUFS, true peak %.1f dBTP\n",
		formatDuration(result.TotalDuration),
		formatBytes(result.FileSizeBytes),
		result.FinalLoudness.IntegratedLUFS,
		result.FinalLoudness.TruePeakDB,
	)

	rows := make([][]string, 0, len(result.Chapters))
	for _, chapter := range result.Chapters {
		rows = append(rows, []string{
			chapter.Type.String(),
			chapter.Title,
			formatDuration(chapter.Start),
			formatDuration(chapter.Duration),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Type", "Title", "Start", "Duration"}, rows, 3, 4))
}

func formatDuration(d time.Duration) string {
	d = d.Round(100 * time.Millisecond)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := d.Seconds() - float64(hours*3600+minutes*60)
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%04.1f", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%04.1f", minutes, seconds)
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
