package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mixdown/internal/normalize"
)

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	var targetFlag float64
	var musicFlag bool

	cmd := &cobra.Command{
		Use:   "normalize <input> <output>",
		Short: "Run two-pass loudness correction on a single file",
		Args:  cobra.ExactArgs(2),
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

			target := targetFlag
			if !cmd.Flags().Changed("target") {
				target = cfg.Normalization.VoiceTargetLUFS
				if musicFlag {
					target = cfg.Normalization.MusicTargetLUFS
				}
			}

			n := normalize.New(runner, cfg, logger)
			outcome, err := n.Normalize(cmd.Context(), normalize.Request{
				Source:     args[0],
				Output:     args[1],
				TargetLUFS: target,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case outcome.PassedThrough:
				fmt.Fprintf(out, "Normalization disabled; copied source to %s\n", outcome.Output)
			case outcome.FellBack:
				fmt.Fprintf(out, "Correction failed; raw source copied to %s\n", outcome.Output)
			default:
				fmt.Fprintf(out, "Corrected %.1f LUFS by %+.1f dB into %s\n",
					outcome.Measurement.IntegratedLUFS, outcome.Gain.DB, outcome.Output)
				if outcome.Gain.Clamped {
					fmt.Fprintln(out, "Gain was clamped by the true-peak ceiling; loudness target not fully reached")
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&targetFlag, "target", 0, "Target loudness in LUFS (defaults to the configured voice target)")
	cmd.Flags().BoolVar(&musicFlag, "music", false, "Correct against the configured music target")
	return cmd
}
