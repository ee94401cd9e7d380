package fusion

import (
	"time"

	"bagfuse/internal/ledger"
)

// BundleOutcome is what happened to one bundle.
type BundleOutcome struct {
	Name           string
	OutputDir      string
	Cameras        int
	FramesWritten  int64
	MessagesCopied uint64
	Topics         []string
	Duration       time.Duration
	Err            error
}

// Succeeded reports whether the bundle was fused without error.
func (o BundleOutcome) Succeeded() bool { return o.Err == nil }

// Summary describes a finished run.
type Summary struct {
	RunID string
	Mode  string
	// Root is the directory bundles were discovered in.
	Root     string
	Archives int
	Bundles  []BundleOutcome
	Started  time.Time
	Finished time.Time
	Status   ledger.Status
}

// Failed returns the outcomes that carry an error.
func (s Summary) Failed() []BundleOutcome {
	var out []BundleOutcome
	for _, b := range s.Bundles {
		if !b.Succeeded() {
			out = append(out, b)
		}
	}
	return out
}

// FramesWritten totals image messages across bundles.
func (s Summary) FramesWritten() int64 {
	var total int64
	for _, b := range s.Bundles {
		total += b.FramesWritten
	}
	return total
}

// MessagesCopied totals source-log messages across bundles.
func (s Summary) MessagesCopied() uint64 {
	var total uint64
	for _, b := range s.Bundles {
		total += b.MessagesCopied
	}
	return total
}
