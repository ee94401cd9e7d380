// Package logging assembles the slog loggers used across bagfuse.
//
// It owns the console and JSON handlers, level parsing, the optional per-run
// log file fanned out alongside the console, and the standard field keys so
// every component tags lines the same way. Context helpers attach the run ID,
// bundle and camera to log lines without threading them through every call.
// NewNop is the logger for tests and wiring that cannot fail.
package logging
