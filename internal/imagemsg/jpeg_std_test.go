//go:build !opencv

package imagemsg

import (
	"testing"

	"bagfuse/internal/video"
)

func TestEncoderForWithoutOpenCV(t *testing.T) {
	for _, backend := range []string{video.BackendFFmpeg, video.BackendOpenCV, ""} {
		if _, ok := EncoderFor(backend).(StdJPEG); !ok {
			t.Fatalf("backend %q: expected StdJPEG, got %T", backend, EncoderFor(backend))
		}
	}
}
