package video

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFrameRate reports a segment whose container metadata carries a
	// zero or undefined frame rate.
	ErrInvalidFrameRate = errors.New("invalid frame rate")
	// ErrBackendUnavailable reports a decoder backend that was not compiled in.
	ErrBackendUnavailable = errors.New("video backend unavailable")
)

// Backend names accepted by NewDecoder.
const (
	BackendFFmpeg = "ffmpeg"
	BackendOpenCV = "opencv"
)

// Frame is one decoded BGR frame. Data holds Height rows of Width*3 bytes.
// Decoders may reuse Data between calls to Segment.Next.
type Frame struct {
	Width  int
	Height int
	Data   []byte
}

// Stride returns the number of bytes per row.
func (f Frame) Stride() int {
	return f.Width * 3
}

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Exceeds reports whether r is larger than other in either dimension.
func (r Resolution) Exceeds(other Resolution) bool {
	return r.Width > other.Width || r.Height > other.Height
}

// ParseResolution parses a WxH string. Empty strings and "none" return nil.
func ParseResolution(value string) (*Resolution, error) {
	cleaned := strings.ToLower(strings.TrimSpace(value))
	if cleaned == "" || cleaned == "none" {
		return nil, nil
	}
	w, h, ok := strings.Cut(cleaned, "x")
	if !ok {
		return nil, fmt.Errorf("resolution %q: expected WxH", value)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return nil, fmt.Errorf("resolution %q: invalid width", value)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return nil, fmt.Errorf("resolution %q: invalid height", value)
	}
	return &Resolution{Width: width, Height: height}, nil
}

// IntegerFrameRate truncates a container frame rate to whole frames per
// second, rejecting rates that truncate to zero.
func IntegerFrameRate(rate float64) (int, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, ErrInvalidFrameRate
	}
	fps := int(rate)
	if fps <= 0 {
		return 0, ErrInvalidFrameRate
	}
	return fps, nil
}

// OpenOptions tunes how a segment is decoded.
type OpenOptions struct {
	// Target resizes every frame when set.
	Target *Resolution
}

// Decoder opens video segments.
type Decoder interface {
	Open(ctx context.Context, path string, opts OpenOptions) (Segment, error)
}

// FrameCounter is implemented by decoders that can report a segment's frame
// count without decoding it.
type FrameCounter interface {
	FrameCount(ctx context.Context, path string) (int64, error)
}

// Segment is one open video file.
type Segment interface {
	// FrameRate is the integer frame rate from container metadata.
	FrameRate() int
	// SourceSize is the native frame size before any resize.
	SourceSize() Resolution
	// Next returns the next frame, or io.EOF once the segment is exhausted.
	Next() (Frame, error)
	Close() error
}

// NewDecoder constructs the named backend.
func NewDecoder(backend, ffmpegBinary, ffprobeBinary string) (Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFFmpeg:
		return NewFFmpeg(ffmpegBinary, ffprobeBinary), nil
	case BackendOpenCV:
		return NewOpenCV()
	default:
		return nil, fmt.Errorf("video backend %q: %w", backend, ErrBackendUnavailable)
	}
}
