package testsupport

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"bagfuse/internal/bag"
	"bagfuse/internal/identifier"
)

// CameraFixture is one camera of a generated bundle. Each entry of Frames
// becomes a segment one minute after the previous one.
type CameraFixture struct {
	Name    string
	Tag     string
	StartMS int64
	FPS     int
	Frames  []int
}

// BundleFixture describes a bundle written by WriteBundle.
type BundleFixture struct {
	Name    string
	Cameras []CameraFixture
	// Topics and Entries form the source log. No log is written when
	// Topics is empty.
	Topics  []bag.Topic
	Entries []bag.Entry
}

// WriteBundle lays out a bundle under root and registers its segments with
// dec. Segment files are empty placeholders. It returns the bundle dir.
func WriteBundle(t testing.TB, root string, dec *FakeDecoder, fx BundleFixture) string {
	t.Helper()

	dir := filepath.Join(root, fx.Name)
	for _, cam := range fx.Cameras {
		camDir := filepath.Join(dir, "camera", cam.Name)
		if err := os.MkdirAll(camDir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", camDir, err)
		}
		tag := cam.Tag
		if tag == "" {
			tag = "csi"
		}
		for i, frames := range cam.Frames {
			name := identifier.Format(tag, cam.StartMS+int64(i)*60_000, i, "mp4")
			if err := os.WriteFile(filepath.Join(camDir, name), nil, 0o644); err != nil {
				t.Fatalf("write segment %s: %v", name, err)
			}
			if dec != nil {
				dec.Add(name, FakeSegment{FPS: cam.FPS, Frames: frames})
			}
		}
	}
	if len(fx.Topics) > 0 {
		WriteSourceLog(t, filepath.Join(dir, "rosbag"), fx.Topics, fx.Entries)
	}
	return dir
}

// WriteSourceLog writes a real rosbag2 directory and returns its MCAP path.
func WriteSourceLog(t testing.TB, dir string, topics []bag.Topic, entries []bag.Entry) string {
	t.Helper()

	w, err := bag.Create(dir, bag.WriterOptions{})
	if err != nil {
		t.Fatalf("create source log: %v", err)
	}
	for _, topic := range topics {
		if err := w.RegisterTopic(topic); err != nil {
			t.Fatalf("register %s: %v", topic.Name, err)
		}
	}
	for _, e := range entries {
		if err := w.Append(e.Topic, e.Data, e.LogTime); err != nil {
			t.Fatalf("append %s: %v", e.Topic, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close source log: %v", err)
	}
	return filepath.Join(dir, filepath.Base(dir)+"_0.mcap")
}

// ZipDir archives src so that its base name is the top-level entry.
func ZipDir(t testing.TB, src, archive string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(archive), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", archive, err)
	}
	out, err := os.Create(archive)
	if err != nil {
		t.Fatalf("create %s: %v", archive, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	parent := filepath.Dir(src)
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel(parent, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	if err != nil {
		t.Fatalf("zip %s: %v", src, err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip %s: %v", archive, err)
	}
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
