// Package fuser turns one camera's video segments into timestamped image
// messages.
//
// Timestamps come from the first segment's filename start time plus a
// constant offset. A camera-wide elapsed counter advances by the current
// segment's frame period for every decoded frame, kept or skipped, so
// skipping thins the stream without compressing its timeline and segments
// join without gaps.
package fuser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"bagfuse/internal/bag"
	"bagfuse/internal/bundle"
	"bagfuse/internal/imagemsg"
	"bagfuse/internal/logging"
	"bagfuse/internal/progress"
	"bagfuse/internal/video"
)

// ErrNegativeTimestamp reports an offset that moves frames before the epoch.
var ErrNegativeTimestamp = errors.New("frame timestamp before the unix epoch")

// Sink receives registered topics and their messages.
type Sink interface {
	RegisterTopic(topic bag.Topic) error
	Append(topic string, data []byte, logTime uint64) error
}

// Options controls one camera's fusion.
type Options struct {
	Raw         bool
	JPEGQuality int
	// SkipFrames drops this many frames after every kept frame.
	SkipFrames       int
	TargetResolution *video.Resolution
	// TimestampOffsetMS is added to every frame timestamp.
	TimestampOffsetMS int64
}

// Stats summarizes a fused camera.
type Stats struct {
	Segments      int
	FramesDecoded int64
	FramesWritten int64
	// FirstStamp and LastStamp are the written message timestamps in
	// nanoseconds. Both are zero when nothing was written.
	FirstStamp int64
	LastStamp  int64
	Warnings   int
}

// Fuser decodes segments and appends image messages to a sink.
type Fuser struct {
	Decoder video.Decoder
	// Encoder compresses frames in JPEG mode. Nil uses imagemsg.StdJPEG.
	Encoder imagemsg.JPEGEncoder
	Logger  *slog.Logger
}

// New returns a Fuser reading through decoder.
func New(decoder video.Decoder, logger *slog.Logger) *Fuser {
	return &Fuser{Decoder: decoder, Logger: logging.NewComponentLogger(logger, "fuser")}
}

// Fuse writes every kept frame of cam to sink under topic. An empty topic
// uses the camera's default. A camera without segments is a no-op and
// registers nothing.
func (f *Fuser) Fuse(ctx context.Context, sink Sink, cam bundle.Camera, topic string, opts Options, counter progress.Counter) (Stats, error) {
	var stats Stats
	if len(cam.Segments) == 0 {
		return stats, nil
	}
	if f.Decoder == nil {
		return stats, errors.New("fuse camera: no decoder configured")
	}
	if opts.SkipFrames < 0 {
		return stats, fmt.Errorf("fuse camera %s: skip frames must not be negative, got %d", cam.Name, opts.SkipFrames)
	}
	if topic == "" {
		topic = cam.Topic()
	}
	start := cam.Segments[0].StartNanos() + opts.TimestampOffsetMS*int64(time.Millisecond)
	if start < 0 {
		return stats, fmt.Errorf("fuse camera %s: offset %d ms: %w", cam.Name, opts.TimestampOffsetMS, ErrNegativeTimestamp)
	}
	counter = progress.OrNop(counter)
	ctx = logging.WithCamera(ctx, cam.Name)
	logger := logging.WithContext(ctx, f.Logger).With(logging.String(logging.FieldTopic, topic))

	err := sink.RegisterTopic(bag.Topic{
		Name:           topic,
		Type:           imagemsg.TypeName(opts.Raw),
		Format:         bag.SerializationCDR,
		SchemaEncoding: imagemsg.SchemaEncoding,
		Schema:         imagemsg.Schema(opts.Raw),
	})
	if err != nil {
		return stats, fmt.Errorf("fuse camera %s: %w", cam.Name, err)
	}

	synth := imagemsg.Synthesizer{Raw: opts.Raw, JPEGQuality: opts.JPEGQuality, Encoder: f.Encoder}
	run := &cameraRun{
		sink:    sink,
		synth:   synth,
		cam:     cam,
		topic:   topic,
		opts:    opts,
		counter: counter,
		logger:  logger,
		start:   start,
		stride:  int64(opts.SkipFrames) + 1,
		stats:   &stats,
	}
	for _, seg := range cam.Segments {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := run.segment(ctx, f.Decoder, seg); err != nil {
			return stats, fmt.Errorf("fuse camera %s: %w", cam.Name, err)
		}
	}

	logger.Info("camera fused",
		logging.String(logging.FieldEventType, "camera_fused"),
		logging.Int("segments", stats.Segments),
		logging.Int64("frames_decoded", stats.FramesDecoded),
		logging.Int64("frames_written", stats.FramesWritten),
	)
	return stats, nil
}

// cameraRun carries the camera-wide counters across segments.
type cameraRun struct {
	sink    Sink
	synth   imagemsg.Synthesizer
	cam     bundle.Camera
	topic   string
	opts    Options
	counter progress.Counter
	logger  *slog.Logger

	start    int64
	stride   int64
	elapsed  int64
	position int64
	lastFPS  int
	stats    *Stats
}

func (r *cameraRun) segment(ctx context.Context, decoder video.Decoder, seg bundle.Segment) error {
	logger := r.logger.With(logging.String(logging.FieldPath, seg.Path))
	src, err := decoder.Open(ctx, seg.Path, video.OpenOptions{Target: r.opts.TargetResolution})
	if err != nil {
		return fmt.Errorf("open segment %s: %w", seg.Path, err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			logger.Debug("segment close failed", logging.Error(closeErr))
		}
	}()

	fps := src.FrameRate()
	if fps <= 0 {
		return fmt.Errorf("segment %s: %w: %d", seg.Path, video.ErrInvalidFrameRate, fps)
	}
	r.stats.Segments++

	if r.lastFPS != 0 && fps != r.lastFPS {
		r.stats.Warnings++
		logging.WarnWithContext(logger, "frame rate changed between segments", "frame_rate_mismatch",
			logging.Int("previous_fps", r.lastFPS),
			logging.Int("fps", fps),
			logging.String(logging.FieldErrorHint, "check the recorder settings for this camera"),
			logging.String(logging.FieldImpact, "timestamps follow each segment's own frame rate"),
		)
	}
	r.lastFPS = fps

	if target := r.opts.TargetResolution; target != nil && target.Exceeds(src.SourceSize()) {
		r.stats.Warnings++
		logging.WarnWithContext(logger, "target resolution is larger than the source", "resolution_upscale",
			logging.String("target", target.String()),
			logging.String("source", src.SourceSize().String()),
			logging.String(logging.FieldErrorHint, "pick a target no larger than the recorded size"),
			logging.String(logging.FieldImpact, "frames are upscaled and grow without gaining detail"),
		)
	}

	period := int64(time.Second) / int64(fps)
	logger.Debug("segment opened", logging.Int("fps", fps), logging.Int64("frame_period_ns", period))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			r.stats.Warnings++
			logging.WarnWithContext(logger, "decode failed; ending segment early", "segment_decode_failed",
				logging.Error(err),
				logging.Int64("frames_decoded", r.stats.FramesDecoded),
				logging.String(logging.FieldErrorHint, "inspect the segment with ffprobe"),
				logging.String(logging.FieldImpact, "remaining frames of this segment are missing"),
			)
			return nil
		}

		stamp := r.start + r.elapsed
		keep := r.position%r.stride == 0
		r.position++
		r.elapsed += period
		r.stats.FramesDecoded++
		r.counter.Add(1)
		if !keep {
			continue
		}
		if err := r.write(frame, stamp); err != nil {
			return err
		}
	}
}

func (r *cameraRun) write(frame video.Frame, stamp int64) error {
	payload, err := r.synth.Synthesize(frame)
	if err != nil {
		return err
	}
	data, err := imagemsg.Marshal(payload, imagemsg.HeaderAt(stamp, r.cam.Name))
	if err != nil {
		return err
	}
	if err := r.sink.Append(r.topic, data, uint64(stamp)); err != nil {
		return err
	}
	if r.stats.FramesWritten == 0 {
		r.stats.FirstStamp = stamp
	}
	r.stats.LastStamp = stamp
	r.stats.FramesWritten++
	return nil
}
