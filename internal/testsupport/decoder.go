package testsupport

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"bagfuse/internal/video"
)

// FakeSegment describes what FakeDecoder serves for one file.
type FakeSegment struct {
	FPS    int
	Frames int
	Width  int
	Height int
}

// FakeDecoder serves synthetic frames keyed by segment base name. Unknown
// names fail to open.
type FakeDecoder struct {
	mu       sync.Mutex
	segments map[string]FakeSegment
	opened   []string
}

// NewFakeDecoder returns an empty decoder.
func NewFakeDecoder() *FakeDecoder {
	return &FakeDecoder{segments: make(map[string]FakeSegment)}
}

// Add registers a segment by file base name.
func (d *FakeDecoder) Add(name string, seg FakeSegment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seg.Width == 0 {
		seg.Width = 4
	}
	if seg.Height == 0 {
		seg.Height = 2
	}
	d.segments[name] = seg
}

// Opened lists opened paths in order.
func (d *FakeDecoder) Opened() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opened...)
}

func (d *FakeDecoder) lookup(path string) (FakeSegment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seg, ok := d.segments[filepath.Base(path)]
	if !ok {
		return FakeSegment{}, fmt.Errorf("fake decoder: unknown segment %s", path)
	}
	return seg, nil
}

// FrameCount implements video.FrameCounter.
func (d *FakeDecoder) FrameCount(_ context.Context, path string) (int64, error) {
	seg, err := d.lookup(path)
	if err != nil {
		return 0, err
	}
	return int64(seg.Frames), nil
}

// Open implements video.Decoder.
func (d *FakeDecoder) Open(_ context.Context, path string, opts video.OpenOptions) (video.Segment, error) {
	seg, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.opened = append(d.opened, path)
	d.mu.Unlock()
	size := video.Resolution{Width: seg.Width, Height: seg.Height}
	out := size
	if opts.Target != nil {
		out = *opts.Target
	}
	return &fakeSegment{def: seg, source: size, out: out}, nil
}

type fakeSegment struct {
	def    FakeSegment
	source video.Resolution
	out    video.Resolution
	served int
}

func (s *fakeSegment) FrameRate() int               { return s.def.FPS }
func (s *fakeSegment) SourceSize() video.Resolution { return s.source }
func (s *fakeSegment) Close() error                 { return nil }

func (s *fakeSegment) Next() (video.Frame, error) {
	if s.served >= s.def.Frames {
		return video.Frame{}, io.EOF
	}
	s.served++
	data := make([]byte, s.out.Width*s.out.Height*3)
	for i := range data {
		data[i] = byte(s.served)
	}
	return video.Frame{Width: s.out.Width, Height: s.out.Height, Data: data}, nil
}
