package fusion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"bagfuse/internal/bag"
	"bagfuse/internal/bundle"
	"bagfuse/internal/config"
	"bagfuse/internal/fuser"
	"bagfuse/internal/imagemsg"
	"bagfuse/internal/intake"
	"bagfuse/internal/ledger"
	"bagfuse/internal/logging"
	"bagfuse/internal/merge"
	"bagfuse/internal/preflight"
	"bagfuse/internal/progress"
	"bagfuse/internal/video"
)

// Ledger records run history. *ledger.Store satisfies it.
type Ledger interface {
	StartRun(ctx context.Context, run ledger.Run) error
	RecordBundle(ctx context.Context, result ledger.BundleResult) error
	FinishRun(ctx context.Context, id string, status ledger.Status, errMsg string) error
}

// Runner fuses every bundle of a configured input.
type Runner struct {
	cfg      *config.Config
	decoder  video.Decoder
	fuser    *fuser.Fuser
	ledger   Ledger
	reporter *progress.Reporter
	base     *slog.Logger
	logger   *slog.Logger
}

// New builds a Runner. store and reporter may be nil.
func New(cfg *config.Config, decoder video.Decoder, store Ledger, reporter *progress.Reporter, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	f := fuser.New(decoder, logger)
	f.Encoder = imagemsg.EncoderFor(cfg.Video.Backend)
	return &Runner{
		cfg:      cfg,
		decoder:  decoder,
		fuser:    f,
		ledger:   store,
		reporter: reporter,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "fusion"),
	}
}

// LockPath returns the lock file in lockDir guarding an output directory.
// The name is derived from the absolute output path, so different spellings
// of one directory share a lock.
func LockPath(lockDir, outputDir string) (string, error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(lockDir, "output-"+hex.EncodeToString(sum[:8])+".lock"), nil
}

// Run executes one fuse run. A run ID already on ctx is reused; otherwise one
// is generated. Preflight and lock failures return before anything is
// written. Under the continue policy a run with failed bundles returns a
// *FailedError alongside the full summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID, ok := logging.RunIDFromContext(ctx)
	if !ok || runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	summary := Summary{RunID: runID, Mode: r.cfg.Run.Mode, Started: time.Now()}
	logger := logging.WithContext(ctx, r.logger)

	opts, err := r.fuserOptions()
	if err != nil {
		return summary, err
	}
	if r.decoder == nil {
		return summary, errors.New("fusion: no video decoder configured")
	}
	if err := r.preflight(); err != nil {
		return summary, err
	}
	lock, err := acquireLock(r.cfg.Run.LockDir, r.cfg.Paths.OutputDir)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.String("mode", r.cfg.Run.Mode),
		logging.String("on_error", r.cfg.Run.OnError),
		logging.String("input_dir", r.cfg.Paths.InputDir),
		logging.String("output_dir", r.cfg.Paths.OutputDir),
	)
	if opts.Raw {
		logging.WarnWithContext(logger, "raw image mode enabled", "raw_mode",
			logging.String(logging.FieldErrorHint, "drop --raw unless uncompressed pixels are required"),
			logging.String(logging.FieldImpact, "output logs are several times larger than with JPEG"),
		)
	}
	r.startLedger(ctx, logger, summary)

	runErr := r.run(ctx, logger, opts, &summary)
	summary.Finished = time.Now()
	summary.Status = runStatus(ctx, runErr)
	r.finishLedger(ctx, logger, summary, runErr)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("status", string(summary.Status)),
		logging.Int("bundles", len(summary.Bundles)),
		logging.Int("failed", len(summary.Failed())),
		logging.Int64("frames_written", summary.FramesWritten()),
		logging.Uint64("messages_copied", summary.MessagesCopied()),
		logging.Duration("duration", summary.Finished.Sub(summary.Started)),
	}
	if runErr != nil {
		logging.ErrorWithContext(logger, "run failed", "run_failed", append(attrs, logging.Error(runErr))...)
	} else {
		logger.Info("run finished", logging.Args(attrs...)...)
	}
	return summary, runErr
}

type candidate struct {
	dir    string
	bundle bundle.Bundle
	err    error
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, opts fuser.Options, summary *Summary) error {
	root, archives, err := r.intake(ctx, logger)
	summary.Archives = archives
	if err != nil {
		return err
	}
	summary.Root = root

	dirs, err := bundle.Dirs(root)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return fmt.Errorf("%w in %s", ErrNoBundles, root)
	}

	// Load everything first so a misnamed segment fails before any decoding.
	candidates := make([]candidate, 0, len(dirs))
	for _, dir := range dirs {
		b, err := bundle.Load(dir)
		candidates = append(candidates, candidate{dir: dir, bundle: b, err: err})
	}
	abort := r.cfg.Run.OnError != config.OnErrorContinue
	if abort {
		for _, c := range candidates {
			if c.err != nil {
				berr := &BundleError{Bundle: filepath.Base(c.dir), Err: c.err}
				r.recordOutcome(ctx, logger, summary, BundleOutcome{Name: berr.Bundle, Err: c.err})
				return berr
			}
		}
	}

	logger.Info("bundles discovered",
		logging.String(logging.FieldEventType, "bundles_discovered"),
		logging.String(logging.FieldPath, root),
		logging.Int("bundles", len(candidates)),
	)

	var failures []*BundleError
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := BundleOutcome{Name: filepath.Base(c.dir), Err: c.err}
		if c.err == nil {
			outcome = r.fuseBundle(ctx, c.bundle, opts)
		}
		r.recordOutcome(ctx, logger, summary, outcome)
		if outcome.Err == nil {
			continue
		}
		berr := &BundleError{Bundle: outcome.Name, Err: outcome.Err}
		if abort || ctx.Err() != nil {
			return berr
		}
		failures = append(failures, berr)
	}
	if len(failures) > 0 {
		return &FailedError{Failed: failures, Total: len(candidates)}
	}
	return nil
}

func (r *Runner) fuseBundle(ctx context.Context, b bundle.Bundle, opts fuser.Options) (outcome BundleOutcome) {
	started := time.Now()
	outcome = BundleOutcome{
		Name:      b.Name,
		OutputDir: filepath.Join(r.cfg.Paths.OutputDir, b.Name),
		Cameras:   len(b.Cameras),
	}
	ctx = logging.WithBundle(ctx, b.Name)
	logger := logging.WithContext(ctx, r.logger)

	var err error
	defer func() {
		outcome.Duration = time.Since(started)
		outcome.Err = err
	}()

	w, err := bag.Create(outcome.OutputDir, bag.WriterOptions{
		Compression: r.cfg.Output.Compression,
		ChunkSize:   r.cfg.Output.ChunkSize,
	})
	if err != nil {
		return outcome
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close output log: %w", closeErr)
		}
		for _, topic := range w.Topics() {
			outcome.Topics = append(outcome.Topics, topic.Name)
		}
	}()

	frames := r.reporter.Counter(b.Name+" frames", "frames", r.frameTotal(ctx, logger, b))
	for _, cam := range b.Cameras {
		var stats fuser.Stats
		stats, err = r.fuser.Fuse(logging.WithCamera(ctx, cam.Name), w, cam, "", opts, frames)
		outcome.FramesWritten += stats.FramesWritten
		if err != nil {
			return outcome
		}
	}
	frames.Finish()

	if len(b.LogFiles) == 0 {
		logging.WarnWithContext(logger, "bundle has no source log", "source_log_missing",
			logging.String(logging.FieldErrorHint, "check the bundle's rosbag directory"),
			logging.String(logging.FieldImpact, "output holds image topics only"),
		)
		return outcome
	}
	messages := r.reporter.Counter(b.Name+" messages", "msgs", r.messageTotal(logger, b))
	var mstats merge.Stats
	mstats, err = merge.New(r.base).CopyFiles(ctx, b.LogFiles, w, messages)
	outcome.MessagesCopied = mstats.Messages
	if err != nil {
		return outcome
	}
	messages.Finish()

	logger.Info("bundle fused",
		logging.String(logging.FieldEventType, "bundle_fused"),
		logging.String(logging.FieldPath, outcome.OutputDir),
		logging.Int("cameras", outcome.Cameras),
		logging.Int64("frames_written", outcome.FramesWritten),
		logging.Uint64("messages_copied", outcome.MessagesCopied),
		logging.Uint64("messages_total", w.MessageCount()),
	)
	return outcome
}

// frameTotal sums container frame counts. Zero means unknown.
func (r *Runner) frameTotal(ctx context.Context, logger *slog.Logger, b bundle.Bundle) int64 {
	counter, ok := r.decoder.(video.FrameCounter)
	if !r.cfg.Video.CountFrames || !ok {
		return 0
	}
	var total int64
	for _, cam := range b.Cameras {
		for _, seg := range cam.Segments {
			n, err := counter.FrameCount(ctx, seg.Path)
			if err != nil {
				logger.Debug("frame count unavailable", logging.String(logging.FieldPath, seg.Path), logging.Error(err))
				return 0
			}
			total += n
		}
	}
	return total
}

func (r *Runner) messageTotal(logger *slog.Logger, b bundle.Bundle) int64 {
	count, err := b.SourceMessageCount()
	if err != nil {
		logging.WarnWithContext(logger, "source message count unavailable", "source_metadata_unreadable",
			logging.Error(err),
			logging.String(logging.FieldPath, b.MetadataPath()),
			logging.String(logging.FieldImpact, "message progress has no total"),
		)
		return 0
	}
	return int64(count)
}

func (r *Runner) fuserOptions() (fuser.Options, error) {
	target, err := video.ParseResolution(r.cfg.Fusion.TargetResolution)
	if err != nil {
		return fuser.Options{}, err
	}
	return fuser.Options{
		Raw:               r.cfg.Fusion.Raw,
		JPEGQuality:       r.cfg.Fusion.JPEGQuality,
		SkipFrames:        r.cfg.Fusion.SkipFrames,
		TargetResolution:  target,
		TimestampOffsetMS: r.cfg.Fusion.TimestampOffsetMS,
	}, nil
}

func (r *Runner) preflight() error {
	input, output := r.cfg.Paths.InputDir, r.cfg.Paths.OutputDir
	if err := preflight.CheckInput(input); err != nil {
		return err
	}
	var allow []string
	if r.cfg.Run.Mode == config.ModeReuse {
		if name, ok := preflight.AllowedOutputEntry(output, r.cfg.Paths.WorkDir); ok {
			allow = append(allow, name)
		}
	}
	if err := preflight.CheckOutput(output, allow...); err != nil {
		return err
	}
	results := []preflight.Result{
		preflight.CheckDirectoryAccess("input", input),
		preflight.CheckDirectoryAccess("output", output),
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%w: %s %s", ErrPreflight, failed[0].Name, failed[0].Detail)
	}
	return nil
}

func acquireLock(lockDir, outputDir string) (*flock.Flock, error) {
	path, err := LockPath(lockDir, outputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrLocked, outputDir, path)
	}
	return lock, nil
}

// intake returns the directory to discover bundles in and the number of
// archives extracted.
func (r *Runner) intake(ctx context.Context, logger *slog.Logger) (string, int, error) {
	input, work := r.cfg.Paths.InputDir, r.cfg.Paths.WorkDir
	if r.cfg.Run.Mode == config.ModeReuse {
		if hasBundles(work) {
			return work, 0, nil
		}
		if hasBundles(input) {
			logger.Info("work directory holds no bundles; using input directory", logging.String(logging.FieldPath, input))
			return input, 0, nil
		}
		return "", 0, fmt.Errorf("%w in %s or %s", ErrNoBundles, work, input)
	}

	archives, err := intake.Archives(input)
	if err != nil {
		return "", 0, err
	}
	if len(archives) == 0 {
		if hasBundles(input) {
			logger.Info("no archives to extract; using input directory", logging.String(logging.FieldPath, input))
			return input, 0, nil
		}
		return "", 0, fmt.Errorf("%w: no .zip archives or bundle directories in %s", ErrNoBundles, input)
	}

	counter := r.reporter.Counter("extract", "archives", int64(len(archives)))
	res, err := intake.Extractor{Logger: r.base}.ExtractAll(ctx, archives, work, counter)
	if err != nil {
		return "", res.Archives, fmt.Errorf("extract archives: %w", err)
	}
	logger.Info("archives extracted",
		logging.String(logging.FieldEventType, "intake_complete"),
		logging.String(logging.FieldPath, work),
		logging.Int("archives", res.Archives),
		logging.Int("files", res.Files),
		logging.Int64("bytes", res.Bytes),
	)
	return work, res.Archives, nil
}

func hasBundles(dir string) bool {
	dirs, err := bundle.Dirs(dir)
	return err == nil && len(dirs) > 0
}

func runStatus(ctx context.Context, err error) ledger.Status {
	var failed *FailedError
	switch {
	case err == nil:
		return ledger.StatusSucceeded
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return ledger.StatusCanceled
	case errors.As(err, &failed) && len(failed.Failed) < failed.Total:
		return ledger.StatusPartial
	default:
		return ledger.StatusFailed
	}
}

// runOptions is the ledger's record of what a run was asked to do.
type runOptions struct {
	Raw               bool   `json:"raw"`
	JPEGQuality       int    `json:"jpeg_quality"`
	SkipFrames        int    `json:"skip_frames"`
	TargetResolution  string `json:"target_resolution,omitempty"`
	TimestampOffsetMS int64  `json:"video_timestamp_offset_ms"`
	OnError           string `json:"on_error"`
	Backend           string `json:"video_backend"`
}

func (r *Runner) startLedger(ctx context.Context, logger *slog.Logger, summary Summary) {
	if r.ledger == nil {
		return
	}
	opts, err := json.Marshal(runOptions{
		Raw:               r.cfg.Fusion.Raw,
		JPEGQuality:       r.cfg.Fusion.JPEGQuality,
		SkipFrames:        r.cfg.Fusion.SkipFrames,
		TargetResolution:  r.cfg.Fusion.TargetResolution,
		TimestampOffsetMS: r.cfg.Fusion.TimestampOffsetMS,
		OnError:           r.cfg.Run.OnError,
		Backend:           r.cfg.Video.Backend,
	})
	if err != nil {
		opts = []byte("{}")
	}
	err = r.ledger.StartRun(context.WithoutCancel(ctx), ledger.Run{
		ID:          summary.RunID,
		StartedAt:   summary.Started,
		Mode:        summary.Mode,
		InputDir:    r.cfg.Paths.InputDir,
		OutputDir:   r.cfg.Paths.OutputDir,
		OptionsJSON: string(opts),
	})
	if err != nil {
		r.ledgerFailed(logger, err)
	}
}

func (r *Runner) recordOutcome(ctx context.Context, logger *slog.Logger, summary *Summary, outcome BundleOutcome) {
	summary.Bundles = append(summary.Bundles, outcome)
	if outcome.Err != nil {
		logging.ErrorWithContext(logger.With(logging.String(logging.FieldBundle, outcome.Name)), "bundle failed", "bundle_failed",
			logging.Error(outcome.Err),
			logging.String("on_error", r.cfg.Run.OnError),
		)
	}
	if r.ledger == nil {
		return
	}
	result := ledger.BundleResult{
		RunID:          summary.RunID,
		Bundle:         outcome.Name,
		Status:         ledger.StatusSucceeded,
		OutputPath:     outcome.OutputDir,
		Cameras:        outcome.Cameras,
		FramesWritten:  outcome.FramesWritten,
		MessagesCopied: outcome.MessagesCopied,
		Duration:       outcome.Duration,
	}
	if outcome.Err != nil {
		result.Status = ledger.StatusFailed
		result.Error = outcome.Err.Error()
	}
	if err := r.ledger.RecordBundle(context.WithoutCancel(ctx), result); err != nil {
		r.ledgerFailed(logger, err)
	}
}

func (r *Runner) finishLedger(ctx context.Context, logger *slog.Logger, summary Summary, runErr error) {
	if r.ledger == nil {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := r.ledger.FinishRun(context.WithoutCancel(ctx), summary.RunID, summary.Status, msg); err != nil {
		r.ledgerFailed(logger, err)
	}
}

func (r *Runner) ledgerFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "run ledger write failed", "ledger_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check ledger.path permissions or disable the ledger"),
		logging.String(logging.FieldImpact, "run history is incomplete; output is unaffected"),
	)
}
