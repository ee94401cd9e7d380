package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"bagfuse/internal/media/ffprobe"
)

const stderrLimit = 4096

// FFmpeg decodes segments by piping bgr24 rawvideo out of an ffmpeg process.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpeg returns an ffmpeg-backed decoder. Empty binary names resolve from PATH.
func NewFFmpeg(ffmpegBinary, ffprobeBinary string) *FFmpeg {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpeg{ffmpeg: ffmpegBinary, ffprobe: ffprobeBinary}
}

func (d *FFmpeg) probe(ctx context.Context, path string) (ffprobe.Stream, error) {
	result, err := ffprobe.Inspect(ctx, d.ffprobe, path)
	if err != nil {
		return ffprobe.Stream{}, err
	}
	stream, ok := result.PrimaryVideo()
	if !ok {
		return ffprobe.Stream{}, fmt.Errorf("%s: no video stream", path)
	}
	return stream, nil
}

// FrameCount reports the container's frame count for path.
func (d *FFmpeg) FrameCount(ctx context.Context, path string) (int64, error) {
	stream, err := d.probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return stream.FrameCount(), nil
}

// Open probes the segment and starts the decoder process.
func (d *FFmpeg) Open(ctx context.Context, path string, opts OpenOptions) (Segment, error) {
	stream, err := d.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	fps, err := IntegerFrameRate(stream.FrameRate())
	if err != nil {
		return nil, fmt.Errorf("%s: frame rate %q: %w", path, stream.RFrameRate, err)
	}
	source := Resolution{Width: stream.Width, Height: stream.Height}
	if source.Width <= 0 || source.Height <= 0 {
		return nil, fmt.Errorf("%s: invalid frame size %s", path, source)
	}

	output := source
	args := []string{"-v", "error", "-nostdin", "-i", path, "-map", "0:v:0"}
	if opts.Target != nil {
		output = *opts.Target
		args = append(args, "-vf", "scale="+strconv.Itoa(output.Width)+":"+strconv.Itoa(output.Height)+":flags=area")
	}
	args = append(args, "-f", "rawvideo", "-pix_fmt", "bgr24", "-")

	cmd := exec.CommandContext(ctx, d.ffmpeg, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &boundedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &ffmpegSegment{
		path:   path,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		fps:    fps,
		source: source,
		output: output,
		buf:    make([]byte, output.Width*output.Height*3),
	}, nil
}

type ffmpegSegment struct {
	path   string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *boundedBuffer
	fps    int
	source Resolution
	output Resolution
	buf    []byte

	waitOnce sync.Once
	waitErr  error
	finished bool
}

func (s *ffmpegSegment) FrameRate() int { return s.fps }

func (s *ffmpegSegment) SourceSize() Resolution { return s.source }

func (s *ffmpegSegment) Next() (Frame, error) {
	if s.finished {
		return Frame{}, io.EOF
	}
	_, err := io.ReadFull(s.stdout, s.buf)
	switch {
	case err == nil:
		return Frame{Width: s.output.Width, Height: s.output.Height, Data: s.buf}, nil
	case errors.Is(err, io.EOF):
		s.finished = true
		if waitErr := s.wait(); waitErr != nil {
			return Frame{}, fmt.Errorf("ffmpeg %s: %w: %s", s.path, waitErr, s.stderr.String())
		}
		return Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.finished = true
		_ = s.wait()
		return Frame{}, fmt.Errorf("ffmpeg %s: truncated frame: %w", s.path, err)
	default:
		return Frame{}, fmt.Errorf("ffmpeg %s: read frame: %w", s.path, err)
	}
}

func (s *ffmpegSegment) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// Close stops the decoder. Exit errors caused by stopping early are ignored.
func (s *ffmpegSegment) Close() error {
	if s.finished {
		return nil
	}
	s.finished = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}

type boundedBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.data); room > 0 {
		if len(p) > room {
			b.data = append(b.data, p[:room]...)
		} else {
			b.data = append(b.data, p...)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.data))
}
