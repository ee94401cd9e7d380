package progress

import (
	"bytes"
	"strings"
	"testing"

	"bagfuse/internal/logging"
)

func TestReporterLogsWhenNotTerminal(t *testing.T) {
	var logs bytes.Buffer
	logger, _, err := logging.New(logging.Options{Level: "info", Writer: &logs})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	var out bytes.Buffer
	r := NewReporter(&out, logger)
	if r.interactive {
		t.Fatal("buffer must not be treated as a terminal")
	}

	c := r.Counter("Fusing images", "frames", 100)
	for i := 0; i < 100; i++ {
		c.Add(1)
	}
	c.Finish()

	// first unit plus one line per 10% bucket
	if lines := strings.Count(logs.String(), "progress: progress task="); lines != 11 {
		t.Fatalf("expected 11 progress lines, got %d:\n%s", lines, logs.String())
	}
	if !strings.Contains(logs.String(), "progress complete") || !strings.Contains(logs.String(), "frames=100") {
		t.Fatalf("missing completion line:\n%s", logs.String())
	}
	if out.Len() != 0 {
		t.Fatalf("expected no bar output off-terminal, got %q", out.String())
	}
}

func TestOrNop(t *testing.T) {
	c := OrNop(nil)
	c.Add(5)
	c.Finish()
	if _, ok := c.(Nop); !ok {
		t.Fatalf("expected Nop, got %T", c)
	}
	var r *Reporter
	if _, ok := r.Counter("x", "y", 1).(Nop); !ok {
		t.Fatal("nil reporter should hand out Nop counters")
	}
}
