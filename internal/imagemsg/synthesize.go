package imagemsg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"bagfuse/internal/video"
)

// DefaultJPEGQuality matches the recorder tooling default.
const DefaultJPEGQuality = 75

// JPEGEncoder compresses a BGR frame.
type JPEGEncoder interface {
	EncodeJPEG(frame video.Frame, quality int) ([]byte, error)
}

// Synthesizer converts frames into payloads for one output mode.
type Synthesizer struct {
	Raw         bool
	JPEGQuality int
	Encoder     JPEGEncoder
}

// Synthesize builds the payload for one frame.
func (s Synthesizer) Synthesize(frame video.Frame) (Payload, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("synthesize image: invalid frame size %dx%d", frame.Width, frame.Height)
	}
	if want := frame.Stride() * frame.Height; len(frame.Data) != want {
		return nil, fmt.Errorf("synthesize image: frame has %d bytes, want %d", len(frame.Data), want)
	}

	if s.Raw {
		// Data aliases the decoder's buffer; Marshal before the next frame.
		return Raw{
			Height:      uint32(frame.Height),
			Width:       uint32(frame.Width),
			Encoding:    EncodingBGR8,
			IsBigEndian: false,
			Step:        uint32(frame.Stride()),
			Data:        frame.Data,
		}, nil
	}

	encoder := s.Encoder
	if encoder == nil {
		encoder = StdJPEG{}
	}
	data, err := encoder.EncodeJPEG(frame, s.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("synthesize image: %w", err)
	}
	return Compressed{Format: FormatJPEG, Data: data}, nil
}

// StdJPEG encodes frames with image/jpeg.
type StdJPEG struct{}

// EncodeJPEG compresses the frame at quality 0-100.
func (StdJPEG) EncodeJPEG(frame video.Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(frame.Width * frame.Height / 4)
	if err := jpeg.Encode(&buf, bgrImage{frame: frame}, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// bgrImage exposes a BGR frame as an image.Image without copying.
type bgrImage struct {
	frame video.Frame
}

func (b bgrImage) ColorModel() color.Model { return color.RGBAModel }

func (b bgrImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.frame.Width, b.frame.Height)
}

func (b bgrImage) At(x, y int) color.Color {
	i := y*b.frame.Stride() + x*3
	px := b.frame.Data[i : i+3 : i+3]
	return color.RGBA{R: px[2], G: px[1], B: px[0], A: 0xff}
}
