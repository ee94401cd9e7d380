// Package fusion runs the whole pipeline: preflight, archive intake, bundle
// discovery, per-camera fusion and source-log merging into one output log
// per bundle.
//
// Runner is the only place that decides what a bundle failure means for the
// run. Leaf packages return typed errors; the run.on_error policy either
// stops at the first BundleError or records it and moves on.
package fusion
