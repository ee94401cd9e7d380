//go:build opencv

package imagemsg

import (
	"fmt"

	"gocv.io/x/gocv"

	"bagfuse/internal/video"
)

// OpenCVJPEG encodes frames with OpenCV's imencode.
type OpenCVJPEG struct{}

// EncodeJPEG compresses the BGR frame at quality 0-100.
func (OpenCVJPEG) EncodeJPEG(frame video.Frame, quality int) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: wrap frame: %w", err)
	}
	defer mat.Close()
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// EncoderFor returns the JPEG encoder matching a decoder backend.
func EncoderFor(backend string) JPEGEncoder {
	if backend == video.BackendOpenCV {
		return OpenCVJPEG{}
	}
	return StdJPEG{}
}
