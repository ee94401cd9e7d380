package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bagfuse/internal/config"
	"bagfuse/internal/deps"
	"bagfuse/internal/fusion"
	"bagfuse/internal/ledger"
	"bagfuse/internal/logging"
	"bagfuse/internal/progress"
)

type fuseFlags struct {
	inputDir         string
	outputDir        string
	workDir          string
	raw              bool
	jpegQuality      int
	skipFrames       int
	targetResolution string
	offsetMS         int64
	mode             string
	onError          string
}

func newFuseCommand(ctx *commandContext) *cobra.Command {
	flags := &fuseFlags{}
	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Fuse every capture bundle of the input into output bag logs",
		Long: "Extracts zipped capture bundles, converts each camera's video frames into\n" +
			"timestamped image messages and merges them with the bundle's source log\n" +
			"into <output_dir>/<bundle>/.",
		Args: cobra.NoArgs,
	}
	ctx.addOverride(func(cfg *config.Config) {
		applyFuseFlags(cmd, flags, cfg)
	})

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		return runFuse(cmd, cfg)
	}

	cmd.Flags().StringVar(&flags.inputDir, "input-dir", "", "Directory holding zipped capture bundles")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory receiving one bag per bundle (must be empty)")
	cmd.Flags().StringVar(&flags.workDir, "work-dir", "", "Directory for extracted bundles (default <output-dir>/intermediate)")
	cmd.Flags().BoolVar(&flags.raw, "raw", false, "Write uncompressed bgr8 images instead of JPEG")
	cmd.Flags().IntVar(&flags.jpegQuality, "jpeg-quality", 0, "JPEG quality 0-100")
	cmd.Flags().IntVar(&flags.skipFrames, "skip-frames", 0, "Frames dropped after every kept frame")
	cmd.Flags().StringVar(&flags.targetResolution, "target-resolution", "", "Resize frames to WxH")
	cmd.Flags().Int64Var(&flags.offsetMS, "video-timestamp-offset", 0, "Milliseconds added to every video timestamp")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "Run mode: extract or reuse")
	cmd.Flags().StringVar(&flags.onError, "on-error", "", "Bundle failure policy: abort or continue")
	return cmd
}

func applyFuseFlags(cmd *cobra.Command, flags *fuseFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("input-dir") {
		cfg.Paths.InputDir = flags.inputDir
	}
	if changed("output-dir") {
		cfg.Paths.OutputDir = flags.outputDir
		if !changed("work-dir") {
			// Follow the new output unless the work dir was pinned elsewhere.
			cfg.Paths.WorkDir = ""
		}
	}
	if changed("work-dir") {
		cfg.Paths.WorkDir = flags.workDir
	}
	if changed("raw") {
		cfg.Fusion.Raw = flags.raw
	}
	if changed("jpeg-quality") {
		cfg.Fusion.JPEGQuality = flags.jpegQuality
	}
	if changed("skip-frames") {
		cfg.Fusion.SkipFrames = flags.skipFrames
	}
	if changed("target-resolution") {
		cfg.Fusion.TargetResolution = flags.targetResolution
	}
	if changed("video-timestamp-offset") {
		cfg.Fusion.TimestampOffsetMS = flags.offsetMS
	}
	if changed("mode") {
		cfg.Run.Mode = flags.mode
	}
	if changed("on-error") {
		cfg.Run.OnError = flags.onError
	}
}

func runFuse(cmd *cobra.Command, cfg *config.Config) error {
	runID := uuid.NewString()
	stderr := cmd.ErrOrStderr()
	logger, closer, err := logging.NewFromConfig(cfg, runID, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	if cfg.Logging.Dir != "" {
		keep := filepath.Join(cfg.Logging.Dir, logging.RunLogName(runID))
		if removed := logging.PruneRunLogs(logger, cfg.Logging.Dir, cfg.Logging.RetentionDays, keep); removed > 0 {
			logger.Debug("pruned old run logs", logging.Int("removed", removed))
		}
	}

	if missing := deps.Missing(deps.CheckBinaries(deps.Requirements(cfg))); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Detail))
		}
		return fmt.Errorf("missing required tools: %s", strings.Join(names, ", "))
	}

	decoder, err := newDecoder(cfg)
	if err != nil {
		return err
	}

	var store fusion.Ledger
	if cfg.Ledger.Enabled {
		db, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			logging.WarnWithContext(logger, "run ledger unavailable", "ledger_open_failed",
				logging.Error(err),
				logging.String(logging.FieldPath, cfg.Ledger.Path),
				logging.String(logging.FieldImpact, "this run is not recorded in history"),
			)
		} else {
			defer db.Close()
			store = db
		}
	}

	reporter := progress.NewReporter(stderr, logger)
	runCtx := logging.WithRunID(cmd.Context(), runID)
	summary, runErr := fusion.New(cfg, decoder, store, reporter, logger).Run(runCtx)
	if len(summary.Bundles) > 0 {
		printSummary(cmd.OutOrStdout(), summary)
	}
	return runErr
}

func printSummary(out io.Writer, summary fusion.Summary) {
	rows := make([][]string, 0, len(summary.Bundles))
	for _, b := range summary.Bundles {
		status := "ok"
		if b.Err != nil {
			status = "failed"
		}
		rows = append(rows, []string{
			b.Name,
			status,
			formatCount(int64(b.Cameras)),
			formatCount(b.FramesWritten),
			formatCount(int64(b.MessagesCopied)),
			b.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Bundle", "Status", "Cameras", "Frames", "Messages", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintf(out, "Run %s %s: %s bundles, %s frames, %s messages\n",
		summary.RunID,
		summary.Status,
		formatCount(int64(len(summary.Bundles))),
		formatCount(summary.FramesWritten()),
		formatCount(int64(summary.MessagesCopied())),
	)
	for _, b := range summary.Failed() {
		fmt.Fprintf(out, "  %s: %v\n", b.Name, b.Err)
	}
}
