// Package preflight checks run preconditions before any bundle is touched.
//
// The input directory must hold something and the output directory must be
// absent or empty, so a run never mixes with an earlier one. Failures are
// returned as sentinel errors the CLI maps to exit status 1.
package preflight
