package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"bagfuse/internal/identifier"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command tree and maps the outcome to an exit code.
// Malformed segment names exit 0 after reporting, as operators fix the
// recorder output and rerun rather than treat it as a crash.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, identifier.ErrMalformedName):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 0
	case errors.Is(err, context.Canceled):
		return 1
	default:
		fmt.Fprintln(stderr, err)
		return 1
	}
}
