// Package progress reports frame and message throughput during a run.
//
// On a terminal each counter is a progressbar; elsewhere counters log one
// line per percentage bucket so container logs stay readable.
package progress

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"bagfuse/internal/logging"
)

// Counter accumulates completed work units.
type Counter interface {
	Add(n int)
	Finish()
}

// Nop discards progress.
type Nop struct{}

func (Nop) Add(int) {}
func (Nop) Finish() {}

// OrNop returns c, or a Nop when c is nil.
func OrNop(c Counter) Counter {
	if c == nil {
		return Nop{}
	}
	return c
}

// Reporter creates counters suited to its output.
type Reporter struct {
	out         io.Writer
	interactive bool
	logger      *slog.Logger
}

// NewReporter returns a reporter drawing bars on out when out is a terminal
// and logging through logger otherwise.
func NewReporter(out io.Writer, logger *slog.Logger) *Reporter {
	if out == nil {
		out = os.Stderr
	}
	return &Reporter{
		out:         out,
		interactive: IsTerminal(out),
		logger:      logging.NewComponentLogger(logger, "progress"),
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok || file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Counter starts a counter for total units; total <= 0 means unknown.
func (r *Reporter) Counter(label, unit string, total int64) Counter {
	if r == nil {
		return Nop{}
	}
	if r.interactive {
		return newBar(r.out, label, unit, total)
	}
	return &logCounter{
		logger:  r.logger,
		label:   label,
		unit:    unit,
		total:   total,
		sampler: logging.NewProgressSampler(10),
	}
}

func newBar(out io.Writer, label, unit string, total int64) Counter {
	max := total
	if max <= 0 {
		max = -1
	}
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(out, "\n") }),
	)
	return &barCounter{bar: bar}
}

type barCounter struct {
	bar *progressbar.ProgressBar
}

func (b *barCounter) Add(n int) { _ = b.bar.Add(n) }

func (b *barCounter) Finish() { _ = b.bar.Finish() }

type logCounter struct {
	mu      sync.Mutex
	logger  *slog.Logger
	label   string
	unit    string
	total   int64
	done    int64
	sampler *logging.ProgressSampler
}

func (c *logCounter) Add(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done += int64(n)
	percent := -1.0
	if c.total > 0 {
		percent = float64(c.done) * 100 / float64(c.total)
	}
	if !c.sampler.ShouldLog(percent, c.label) {
		return
	}
	attrs := []logging.Attr{
		logging.String("task", c.label),
		logging.Int64(c.unit, c.done),
	}
	if c.total > 0 {
		attrs = append(attrs, logging.Int64("total", c.total), logging.Int("percent", int(percent)))
	}
	c.logger.Info("progress", logging.Args(attrs...)...)
}

func (c *logCounter) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Info("progress complete",
		logging.String("task", c.label),
		logging.Int64(c.unit, c.done),
	)
}
