package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mixdown/internal/ledger"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded assembly runs",
	}

	var limitFlag int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortRunID(run.RunID),
					run.Title,
					string(run.Status),
					run.Stage,
					formatDuration(time.Duration(run.DurationSeconds * float64(time.Second))),
					run.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Title", "Status", "Stage", "Duration", "Started"}, rows, 5))
			return nil
		},
	}
	listCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Maximum number of runs to list")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its chapter manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s)\n", run.RunID, run.Status)
			if run.Title != "" {
				fmt.Fprintf(out, "Title: %s\n", run.Title)
			}
			if run.Status == ledger.StatusFailed {
				fmt.Fprintf(out, "Failed during %s: %s\n", run.Stage, run.Error)
				return nil
			}
			if run.OutputPath != "" {
				fmt.Fprintf(out, "Output: %s (%s, %s)\n", run.OutputPath,
					formatDuration(time.Duration(run.DurationSeconds*float64(time.Second))),
					formatBytes(run.SizeBytes))
			}
			if len(run.Chapters) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(run.Chapters))
			for _, chapter := range run.Chapters {
				rows = append(rows, []string{
					chapter.Type,
					chapter.Title,
					formatDuration(time.Duration(chapter.StartSeconds * float64(time.Second))),
					formatDuration(time.Duration(chapter.DurationSeconds * float64(time.Second))),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Type", "Title", "Start", "Duration"}, rows, 3, 4))
			return nil
		},
	}

	runsCmd.AddCommand(listCmd)
	runsCmd.AddCommand(showCmd)
	runsCmd.RunE = listCmd.RunE
	return runsCmd
}

func openLedger(ctx *commandContext) (*ledger.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg)
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
