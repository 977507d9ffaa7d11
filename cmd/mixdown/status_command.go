package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mixdown/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the toolchain and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			fmt.Fprintln(cmd.OutOrStdout(), renderPreflight(results))
			if !preflight.Passed(results) {
				return fmt.Errorf("%d check(s) failed", countFailed(results))
			}
			return nil
		},
	}
}

func renderPreflight(results []preflight.Result) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		state := "ok"
		if !result.Passed {
			state = "FAIL"
		}
		rows = append(rows, []string{result.Name, state, result.Detail})
	}
	return renderTable([]string{"Check", "State", "Detail"}, rows)
}

func countFailed(results []preflight.Result) int {
	failed := 0
	for _, result := range results {
		if !result.Passed {
			failed++
		}
	}
	return failed
}
