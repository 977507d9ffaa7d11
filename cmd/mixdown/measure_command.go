package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mixdown/internal/media/loudness"
)

func newMeasureCommand(ctx *commandContext) *cobra.Command {
	var targetFlag float64
	var musicFlag bool

	cmd := &cobra.Command{
		Use:   "measure <file>",
		Short: "Measure loudness and report the correction it would need",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runner, err := ctx.runner()
			if err != nil {
				return err
			}

			target := targetFlag
			if !cmd.Flags().Changed("target") {
				target = cfg.Normalization.VoiceTargetLUFS
				if musicFlag {
					target = cfg.Normalization.MusicTargetLUFS
				}
			}

			analyzer := loudness.NewAnalyzer(runner, cfg.Toolchain.FFmpeg, ctx.probeTimeout())
			m, err := analyzer.Measure(cmd.Context(), args[0], target, cfg.Normalization.MaxTruePeakDB)
			if err != nil {
				return err
			}
			gain := loudness.ComputeGain(m, target, cfg.Normalization.MaxTruePeakDB)

			rows := [][]string{
				{"Integrated loudness", fmt.Sprintf("%.1f LUFS", m.IntegratedLUFS)},
				{"True peak", fmt.Sprintf("%.1f dBTP", m.TruePeakDB)},
				{"Loudness range", fmt.Sprintf("%.1f LU", m.RangeLU)},
				{"Gating threshold", fmt.Sprintf("%.1f LUFS", m.ThresholdLUFS)},
				{"Target", fmt.Sprintf("%.1f LUFS", target)},
				{"Correction", fmt.Sprintf("%+.1f dB", gain.DB)},
			}
			if gain.Clamped {
				rows = append(rows, []string{"Note", "gain clamped by true-peak ceiling"})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Measurement", "Value"}, rows))
			return nil
		},
	}

	cmd.Flags().Float64Var(&targetFlag, "target", 0, "Target loudness in LUFS (defaults to the configured voice target)")
	cmd.Flags().BoolVar(&musicFlag, "music", false, "Measure against the configured music target")
	return cmd
}
