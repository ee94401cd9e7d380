// Package deps checks that the external programs bagfuse shells out to are
// installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"bagfuse/internal/config"
)

// Requirement defines an external dependency bagfuse relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Path is the resolved executable when Available.
	Path   string
	Detail string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch path, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries the configured video backend needs. The
// OpenCV backend decodes in-process but still uses ffprobe for frame counts
// when progress sizing is enabled.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	var reqs []Requirement
	if cfg.Video.Backend == "ffmpeg" {
		reqs = append(reqs, Requirement{
			Name:        "FFmpeg",
			Command:     cfg.Video.FFmpegBinary,
			Description: "Decodes video segments into raw frames",
		})
	}
	reqs = append(reqs, Requirement{
		Name:        "FFprobe",
		Command:     cfg.Video.FFprobeBinary,
		Description: "Reads frame rates and frame counts",
		Optional:    cfg.Video.Backend != "ffmpeg" && !cfg.Video.CountFrames,
	})
	return reqs
}

// Missing returns the required dependencies that are not available.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
