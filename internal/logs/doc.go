// Package logs locates and reads the per-run JSON log files written by
// bagfuse fuse.
//
// Reads are bounded: Tail keeps a ring of the last N lines and Follow polls
// from a byte offset, so large logs never load into memory.
package logs
