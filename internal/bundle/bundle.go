// Package bundle discovers capture bundles on disk.
//
// A bundle is one recording session laid out as:
//
//	<bundle>/camera/<camera_name>/*.mp4
//	<bundle>/rosbag/*.mcap
//	<bundle>/rosbag/metadata.yaml
//
// Segments are ordered by filename because frame numbering continues across
// a camera's segments. Every segment name is parsed on load so a misnamed
// file fails the bundle before any decoding starts.
package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bagfuse/internal/bag"
	"bagfuse/internal/identifier"
)

const (
	cameraDir   = "camera"
	rosbagDir   = "rosbag"
	videoExt    = ".mp4"
	logExt      = ".mcap"
	topicPrefix = "/image/"
)

// Segment is one video file of a camera.
type Segment struct {
	Path string
	ID   identifier.Identifier
}

// StartNanos returns the segment's capture start in nanoseconds.
func (s Segment) StartNanos() int64 {
	return s.ID.StartNanos()
}

// Camera is one camera's ordered segments.
type Camera struct {
	Name     string
	Dir      string
	Segments []Segment
}

// Topic returns the output topic for the camera's frames.
func (c Camera) Topic() string {
	return topicPrefix + c.Name
}

// Bundle is one capture session.
type Bundle struct {
	Name     string
	Dir      string
	Cameras  []Camera
	LogFiles []string
}

// MetadataPath returns the source log's rosbag2 metadata path.
func (b Bundle) MetadataPath() string {
	return filepath.Join(b.Dir, rosbagDir, bag.MetadataFile)
}

// SourceMessageCount reads the source log's total message count from
// metadata.yaml.
func (b Bundle) SourceMessageCount() (uint64, error) {
	meta, err := bag.ReadMetadata(b.MetadataPath())
	if err != nil {
		return 0, err
	}
	return meta.Info.MessageCount, nil
}

// SegmentCount returns the number of video segments across all cameras.
func (b Bundle) SegmentCount() int {
	total := 0
	for _, cam := range b.Cameras {
		total += len(cam.Segments)
	}
	return total
}

// Dirs lists the bundle directories directly under root, sorted by name,
// without loading them.
func Dirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if Looks(dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// Looks reports whether dir has the camera or rosbag subdirectory of a bundle.
func Looks(dir string) bool {
	for _, sub := range []string{cameraDir, rosbagDir} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// Load reads one bundle directory. Errors do not name the bundle; callers
// add that context.
func Load(dir string) (Bundle, error) {
	b := Bundle{Name: filepath.Base(filepath.Clean(dir)), Dir: dir}

	cameraDirs, err := listDirs(filepath.Join(dir, cameraDir))
	if err != nil {
		return Bundle{}, err
	}
	for _, camDir := range cameraDirs {
		cam, err := loadCamera(camDir)
		if err != nil {
			return Bundle{}, err
		}
		b.Cameras = append(b.Cameras, cam)
	}

	logs, err := listFiles(filepath.Join(dir, rosbagDir), logExt)
	if err != nil {
		return Bundle{}, err
	}
	b.LogFiles = logs
	return b, nil
}

func loadCamera(dir string) (Camera, error) {
	cam := Camera{Name: filepath.Base(dir), Dir: dir}
	files, err := listFiles(dir, videoExt)
	if err != nil {
		return Camera{}, err
	}
	for _, path := range files {
		id, err := identifier.Parse(path)
		if err != nil {
			return Camera{}, fmt.Errorf("camera %s: %w", cam.Name, err)
		}
		cam.Segments = append(cam.Segments, Segment{Path: path, ID: id})
	}
	return cam, nil
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}
