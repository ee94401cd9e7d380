package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

var (
	// ErrInputEmpty reports an input directory with no entries.
	ErrInputEmpty = errors.New("input directory is empty")
	// ErrOutputNotEmpty reports an output directory that already holds files.
	ErrOutputNotEmpty = errors.New("output directory is not empty")
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckInput verifies dir exists and has at least one entry. A missing
// directory is created so the operator knows where to put archives, and is
// reported as empty.
func CheckInput(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return fmt.Errorf("create input directory: %w", mkErr)
			}
			return fmt.Errorf("%w: %s (place zipped capture bundles there before running)", ErrInputEmpty, dir)
		}
		return fmt.Errorf("read input directory: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: %s (place zipped capture bundles there before running)", ErrInputEmpty, dir)
	}
	return nil
}

// CheckOutput verifies dir is absent or empty, ignoring entries named in
// allow, then creates it. allow holds base names such as the work
// directory kept from an earlier extraction.
func CheckOutput(dir string, allow ...string) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read output directory: %w", err)
	}
	permitted := make(map[string]struct{}, len(allow))
	for _, name := range allow {
		permitted[name] = struct{}{}
	}
	for _, entry := range entries {
		if _, ok := permitted[entry.Name()]; ok {
			continue
		}
		return fmt.Errorf("%w: %s (delete its contents before running)", ErrOutputNotEmpty, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// AllowedOutputEntry returns the base name of child when it sits directly
// inside parent, for use with CheckOutput.
func AllowedOutputEntry(parent, child string) (string, bool) {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." || filepath.Dir(rel) != "." || rel == ".." {
		return "", false
	}
	return rel, true
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
