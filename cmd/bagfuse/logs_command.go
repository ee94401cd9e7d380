package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"bagfuse/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		level  string
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "logs [run-id]",
		Short: "Show a run's log (latest run by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Logging.Dir == "" {
				return errors.New("run logs are disabled (set logging.dir)")
			}
			var path string
			if len(args) == 1 {
				path, err = logs.ForRun(cfg.Logging.Dir, args[0])
			} else {
				path, err = logs.Latest(cfg.Logging.Dir)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			emit := func(line string) {
				printLogLine(out, line, level, raw)
			}
			tail, offset, err := logs.Tail(path, lines)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# run %s (%s)\n", logs.RunID(path), path)
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, emit)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON records unchanged")
	return cmd
}

func printLogLine(out io.Writer, line, level string, raw bool) {
	rec, ok := logs.Parse(line)
	if ok && level != "" && !rec.AtLeast(level) {
		return
	}
	if raw || !ok {
		fmt.Fprintln(out, line)
		return
	}
	fmt.Fprintln(out, rec.String())
}
