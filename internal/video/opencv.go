//go:build opencv

package video

import (
	"context"
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"
)

// OpenCV decodes segments through gocv's VideoCapture.
type OpenCV struct{}

// NewOpenCV returns the OpenCV-backed decoder.
func NewOpenCV() (Decoder, error) {
	return OpenCV{}, nil
}

// FrameCount reports CAP_PROP_FRAME_COUNT for path.
func (OpenCV) FrameCount(_ context.Context, path string) (int64, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer capture.Close()
	return int64(capture.Get(gocv.VideoCaptureFrameCount)), nil
}

func (OpenCV) Open(_ context.Context, path string, opts OpenOptions) (Segment, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	fps, err := IntegerFrameRate(capture.Get(gocv.VideoCaptureFPS))
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	source := Resolution{
		Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	return &opencvSegment{
		capture: capture,
		fps:     fps,
		source:  source,
		target:  opts.Target,
		frame:   gocv.NewMat(),
		resized: gocv.NewMat(),
	}, nil
}

type opencvSegment struct {
	capture *gocv.VideoCapture
	fps     int
	source  Resolution
	target  *Resolution
	frame   gocv.Mat
	resized gocv.Mat
}

func (s *opencvSegment) FrameRate() int { return s.fps }

func (s *opencvSegment) SourceSize() Resolution { return s.source }

func (s *opencvSegment) Next() (Frame, error) {
	if ok := s.capture.Read(&s.frame); !ok || s.frame.Empty() {
		return Frame{}, io.EOF
	}
	mat := s.frame
	if s.target != nil {
		gocv.Resize(s.frame, &s.resized, image.Pt(s.target.Width, s.target.Height), 0, 0, gocv.InterpolationArea)
		mat = s.resized
	}
	return Frame{Width: mat.Cols(), Height: mat.Rows(), Data: mat.ToBytes()}, nil
}

func (s *opencvSegment) Close() error {
	s.frame.Close()
	s.resized.Close()
	return s.capture.Close()
}
