// Package intake unpacks zipped capture bundles into the work directory.
package intake

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bagfuse/internal/logging"
	"bagfuse/internal/progress"
)

// ErrUnsafePath reports an archive member that would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive member escapes destination")

// Archives returns the *.zip files directly inside dir, sorted.
func Archives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Result summarizes an extraction.
type Result struct {
	Archives int
	Files    int
	Bytes    int64
}

// Extractor unpacks archives.
type Extractor struct {
	Logger *slog.Logger
}

// ExtractAll unpacks every archive into dest, advancing counter once per
// archive.
func (x Extractor) ExtractAll(ctx context.Context, archives []string, dest string, counter progress.Counter) (Result, error) {
	counter = progress.OrNop(counter)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(x.Logger, "intake"))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Result{}, fmt.Errorf("create work directory: %w", err)
	}
	var total Result
	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := Extract(archive, dest)
		total.Files += res.Files
		total.Bytes += res.Bytes
		if err != nil {
			return total, err
		}
		total.Archives++
		counter.Add(1)
		logger.Info("archive extracted",
			logging.String(logging.FieldEventType, "archive_extracted"),
			logging.String(logging.FieldPath, archive),
			logging.Int("files", res.Files),
		)
	}
	counter.Finish()
	return total, nil
}

// Extract unpacks one zip archive into dest.
func Extract(archive, dest string) (Result, error) {
	var res Result
	reader, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = reader.Close()
		return res, fmt.Errorf("archive %s: %w", archive, ErrUnsafePath)
	}
	if err != nil {
		return res, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer reader.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return res, fmt.Errorf("resolve destination: %w", err)
	}
	for _, member := range reader.File {
		target, err := memberPath(root, member.Name)
		if err != nil {
			return res, fmt.Errorf("archive %s: %w", archive, err)
		}
		if member.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return res, fmt.Errorf("create %s: %w", target, err)
			}
			continue
		}
		n, err := writeMember(member, target)
		if err != nil {
			return res, fmt.Errorf("archive %s: %w", archive, err)
		}
		res.Files++
		res.Bytes += n
	}
	res.Archives = 1
	return res, nil
}

func memberPath(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, cleaned)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func writeMember(member *zip.File, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	src, err := member.Open()
	if err != nil {
		return 0, fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer src.Close()

	mode := member.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}
	n, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		return n, fmt.Errorf("extract %s: %w", member.Name, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close %s: %w", target, closeErr)
	}
	return n, nil
}
