package fusion

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked reports another run holding the output directory lock.
	ErrLocked = errors.New("output directory is locked by another run")
	// ErrNoBundles reports a run that found nothing to fuse.
	ErrNoBundles = errors.New("no capture bundles found")
	// ErrPreflight reports failed directory access checks.
	ErrPreflight = errors.New("preflight failed")
)

// BundleError ties a failure to the bundle it happened in.
type BundleError struct {
	Bundle string
	Err    error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle %s: %v", e.Bundle, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

// FailedError reports a continue-policy run in which some bundles failed.
type FailedError struct {
	Failed []*BundleError
	Total  int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%d of %d bundles failed (first: %v)", len(e.Failed), e.Total, e.Failed[0])
}

// Unwrap exposes every bundle failure to errors.Is and errors.As.
func (e *FailedError) Unwrap() []error {
	out := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f
	}
	return out
}
