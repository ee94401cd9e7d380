package ledger

import "time"

// Status is the outcome of a run or bundle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusPartial marks a run that finished with some failed bundles.
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Run is one fuse invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	Mode       string
	InputDir   string
	OutputDir  string
	// OptionsJSON is the fusion options the run used.
	OptionsJSON string
	Error       string

	// Bundles and FailedBundles are filled by ListRuns.
	Bundles       int
	FailedBundles int
}

// BundleResult is the outcome of one bundle within a run.
type BundleResult struct {
	RunID          string
	Bundle         string
	Status         Status
	OutputPath     string
	Cameras        int
	FramesWritten  int64
	MessagesCopied uint64
	Duration       time.Duration
	Error          string
	RecordedAt     time.Time
}
