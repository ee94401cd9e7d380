package video

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func probeStub(t *testing.T, dir, rate string) string {
	t.Helper()
	json := `{"streams":[{"index":0,"codec_type":"video","width":2,"height":2,"r_frame_rate":"` + rate + `","nb_frames":"3"}],"format":{}}`
	return writeStub(t, dir, "ffprobe", "cat <<'JSON'\n"+json+"\nJSON")
}

func drain(t *testing.T, seg Segment) (int, error) {
	t.Helper()
	frames := 0
	for {
		frame, err := seg.Next()
		if err != nil {
			return frames, err
		}
		if len(frame.Data) != frame.Stride()*frame.Height {
			t.Fatalf("frame %d: %d bytes for %dx%d", frames, len(frame.Data), frame.Width, frame.Height)
		}
		frames++
	}
}

func TestFFmpegDecodesRawFrames(t *testing.T) {
	dir := t.TempDir()
	probe := probeStub(t, dir, "10/1")
	ffmpeg := writeStub(t, dir, "ffmpeg", "head -c 36 /dev/zero")

	dec := NewFFmpeg(ffmpeg, probe)
	seg, err := dec.Open(context.Background(), filepath.Join(dir, "cam.mp4"), OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer seg.Close()

	if seg.FrameRate() != 10 {
		t.Fatalf("unexpected frame rate: %d", seg.FrameRate())
	}
	if seg.SourceSize() != (Resolution{Width: 2, Height: 2}) {
		t.Fatalf("unexpected source size: %v", seg.SourceSize())
	}
	frames, err := drain(t, seg)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if frames != 3 {
		t.Fatalf("expected 3 frames, got %d", frames)
	}

	count, err := dec.FrameCount(context.Background(), filepath.Join(dir, "cam.mp4"))
	if err != nil || count != 3 {
		t.Fatalf("FrameCount = %d (%v), want 3", count, err)
	}
}

func TestFFmpegAppliesTargetResolution(t *testing.T) {
	dir := t.TempDir()
	probe := probeStub(t, dir, "10/1")
	argsFile := filepath.Join(dir, "args")
	ffmpeg := writeStub(t, dir, "ffmpeg", `echo "$@" > `+argsFile+"\nhead -c 6 /dev/zero")

	seg, err := NewFFmpeg(ffmpeg, probe).Open(context.Background(), filepath.Join(dir, "cam.mp4"), OpenOptions{Target: &Resolution{Width: 1, Height: 1}})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer seg.Close()

	frames, err := drain(t, seg)
	if !errors.Is(err, io.EOF) || frames != 2 {
		t.Fatalf("expected 2 frames then EOF, got %d (%v)", frames, err)
	}
	if seg.SourceSize() != (Resolution{Width: 2, Height: 2}) {
		t.Fatalf("source size should be native, got %v", seg.SourceSize())
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if !strings.Contains(string(args), "scale=1:1:flags=area") {
		t.Fatalf("expected scale filter in args, got %q", args)
	}
	if !strings.Contains(string(args), "-pix_fmt bgr24") {
		t.Fatalf("expected bgr24 output, got %q", args)
	}
}

func TestFFmpegTruncatedFrameIsNotEOF(t *testing.T) {
	dir := t.TempDir()
	probe := probeStub(t, dir, "10/1")
	ffmpeg := writeStub(t, dir, "ffmpeg", "head -c 30 /dev/zero")

	seg, err := NewFFmpeg(ffmpeg, probe).Open(context.Background(), filepath.Join(dir, "cam.mp4"), OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer seg.Close()

	frames, err := drain(t, seg)
	if frames != 2 {
		t.Fatalf("expected 2 complete frames, got %d", frames)
	}
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected truncation error, got %v", err)
	}
}

func TestFFmpegRejectsZeroFrameRate(t *testing.T) {
	dir := t.TempDir()
	probe := probeStub(t, dir, "0/0")
	ffmpeg := writeStub(t, dir, "ffmpeg", "exit 0")

	_, err := NewFFmpeg(ffmpeg, probe).Open(context.Background(), filepath.Join(dir, "cam.mp4"), OpenOptions{})
	if !errors.Is(err, ErrInvalidFrameRate) {
		t.Fatalf("expected ErrInvalidFrameRate, got %v", err)
	}
}

func TestFFmpegReportsDecoderFailure(t *testing.T) {
	dir := t.TempDir()
	probe := probeStub(t, dir, "10/1")
	ffmpeg := writeStub(t, dir, "ffmpeg", "echo 'moov atom not found' >&2\nexit 1")

	seg, err := NewFFmpeg(ffmpeg, probe).Open(context.Background(), filepath.Join(dir, "cam.mp4"), OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer seg.Close()

	_, err = seg.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected decoder failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}
