// Package main hosts the bagfuse CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation (file,
// then BAGFUSE_* environment, then flags), builds the run logger, and hands
// off to internal/fusion. Everything domain-specific lives in the internal
// packages; commands here only translate flags and render results.
package main
