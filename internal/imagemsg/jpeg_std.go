//go:build !opencv

package imagemsg

// EncoderFor returns the JPEG encoder matching a decoder backend. Without
// OpenCV compiled in every backend uses image/jpeg.
func EncoderFor(string) JPEGEncoder {
	return StdJPEG{}
}
