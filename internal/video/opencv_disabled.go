//go:build !opencv

package video

import "fmt"

// NewOpenCV reports that the binary was built without OpenCV support.
func NewOpenCV() (Decoder, error) {
	return nil, fmt.Errorf("%s: rebuild with -tags opencv: %w", BackendOpenCV, ErrBackendUnavailable)
}
