// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no bagfuse-specific dependencies.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties, including frame rate and frame count
//   - Format: container-level metadata (duration, size)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Frame rates are reported by ffprobe as rationals ("30000/1001"); the Stream
// helpers convert them to floating point and leave integer truncation to the
// caller.
package ffprobe
