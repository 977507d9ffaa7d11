package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mixdown/internal/media/probe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect the structure of an audio file",
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

			prober := probe.New(runner, cfg.Toolchain.FFprobe, ctx.probeTimeout())
			info, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Path", info.Path},
				{"Format", info.FormatName},
				{"Codec", info.Codec},
				{"Duration", formatDuration(time.Duration(info.DurationSeconds * float64(time.Second)))},
				{"Size", formatBytes(info.SizeBytes)},
				{"Bitrate", fmt.Sprintf("%d b/s", info.BitRate)},
				{"Sample rate", fmt.Sprintf("%d Hz", info.SampleRate)},
				{"Channels", fmt.Sprintf("%d", info.Channels)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
}
