package logs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoLogs reports a log directory without run logs.
var ErrNoLogs = errors.New("no run logs found")

const (
	namePrefix = "bagfuse-"
	nameSuffix = ".log"
)

// ForRun returns the log path of runID in dir. The file must exist.
func ForRun(dir, runID string) (string, error) {
	path := filepath.Join(dir, namePrefix+strings.TrimSpace(runID)+nameSuffix)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("run %s: %w in %s", runID, ErrNoLogs, dir)
		}
		return "", fmt.Errorf("stat run log: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("log path %q is a directory", path)
	}
	return path, nil
}

// Latest returns the most recently modified run log in dir.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("list log directory: %w", err)
	}
	var (
		best    string
		bestMod int64
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = name, mod
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w in %s", ErrNoLogs, dir)
	}
	return filepath.Join(dir, best), nil
}

// RunID extracts the run ID from a run log path.
func RunID(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
}
