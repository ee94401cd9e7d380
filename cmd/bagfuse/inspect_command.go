package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bagfuse/internal/bag"
	"bagfuse/internal/bundle"
	"bagfuse/internal/config"
	"bagfuse/internal/media/ffprobe"
	"bagfuse/internal/video"
)

// probeSegment inspects a segment with ffprobe. Tests replace it.
var probeSegment = ffprobe.Inspect

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var noProbe bool
	cmd := &cobra.Command{
		Use:   "inspect <bundle-dir>",
		Short: "Show a capture bundle's cameras, segments and source-log topics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			b, err := bundle.Load(args[0])
			if err != nil {
				return fmt.Errorf("bundle %s: %w", filepath.Base(args[0]), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bundle %s (%s): cameras %d, segments %d\n", b.Name, b.Dir, len(b.Cameras), b.SegmentCount())
			printSegments(cmd.Context(), out, cfg, b, !noProbe)
			return printSourceLog(out, b)
		},
	}
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip ffprobe; show names and start times only")
	return cmd
}

func printSegments(ctx context.Context, out io.Writer, cfg *config.Config, b bundle.Bundle, probe bool) {
	if len(b.Cameras) == 0 {
		fmt.Fprintln(out, "No cameras")
		return
	}
	var rows [][]string
	for _, cam := range b.Cameras {
		for _, seg := range cam.Segments {
			fps, size, duration, frames := "-", "-", "-", "-"
			if probe {
				fps, size, duration, frames = "?", "?", "?", "?"
				if result, err := probeSegment(ctx, cfg.Video.FFprobeBinary, seg.Path); err == nil {
					if secs := result.DurationSeconds(); secs > 0 {
						duration = strconv.FormatFloat(secs, 'f', 1, 64) + "s"
					}
					if stream, ok := result.PrimaryVideo(); ok {
						if rate, err := video.IntegerFrameRate(stream.FrameRate()); err == nil {
							fps = strconv.Itoa(rate)
						} else {
							fps = "invalid"
						}
						size = video.Resolution{Width: stream.Width, Height: stream.Height}.String()
						if n := stream.FrameCount(); n > 0 {
							frames = formatCount(n)
						}
					}
				}
			}
			rows = append(rows, []string{
				cam.Name,
				filepath.Base(seg.Path),
				time.Unix(0, seg.StartNanos()).UTC().Format("2006-01-02 15:04:05.000"),
				fps,
				size,
				duration,
				frames,
			})
		}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Camera", "Segment", "Start (UTC)", "FPS", "Size", "Duration", "Frames"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}

func printSourceLog(out io.Writer, b bundle.Bundle) error {
	if len(b.LogFiles) == 0 {
		fmt.Fprintln(out, "No source log")
		return nil
	}
	counts := map[string]uint64{}
	if meta, err := bag.ReadMetadata(b.MetadataPath()); err == nil {
		for _, tc := range meta.Info.TopicsWithMessageCount {
			counts[tc.TopicMetadata.Name] = tc.MessageCount
		}
	}

	var rows [][]string
	for _, path := range b.LogFiles {
		r, err := bag.OpenReader(path)
		if err != nil {
			return err
		}
		for _, name := range r.TopicNames() {
			topic, _ := r.Lookup(name)
			count := "?"
			if n, ok := counts[name]; ok {
				count = formatCount(int64(n))
			}
			rows = append(rows, []string{filepath.Base(path), name, topic.Type, count})
		}
		if err := r.Close(); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Topic", "Type", "Messages"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
	return nil
}
