package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bagfuse/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded fuse runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Ledger.Enabled {
				return errors.New("run ledger is disabled (set ledger.enabled = true)")
			}
			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				results, err := store.Bundles(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintf(out, "No bundles recorded for run %s\n", runID)
					return nil
				}
				fmt.Fprintln(out, renderBundleResults(results))
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show per-bundle results for one run")
	return cmd
}

func renderRuns(runs []ledger.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(r.Status),
			r.Mode,
			formatCount(int64(r.Bundles)),
			formatCount(int64(r.FailedBundles)),
			duration,
			r.OutputDir,
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Status", "Mode", "Bundles", "Failed", "Duration", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func renderBundleResults(results []ledger.BundleResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Bundle,
			string(r.Status),
			formatCount(int64(r.Cameras)),
			formatCount(r.FramesWritten),
			formatCount(int64(r.MessagesCopied)),
			r.Duration.Round(time.Millisecond).String(),
			r.Error,
		})
	}
	return renderTable(
		[]string{"Bundle", "Status", "Cameras", "Frames", "Messages", "Duration", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}
