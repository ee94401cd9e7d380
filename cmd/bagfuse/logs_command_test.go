package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bagfuse/internal/testsupport"
)

func TestLogsCommandShowsLatestRun(t *testing.T) {
	isolateHome(t)
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	if err := os.MkdirAll(cfg.Logging.Dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := strings.Join([]string{
		`{"ts":"2026-01-02T03:04:05Z","level":"info","msg":"run started","component":"fusion"}`,
		`{"ts":"2026-01-02T03:04:06Z","level":"warn","msg":"frame rate changed","component":"fuser","fps":25}`,
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(cfg.Logging.Dir, "bagfuse-abc.log"), []byte(body), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, stderr, code := runCLI(t, []string{"logs", "--level", "warn"}, configPath)
	if code != 0 {
		t.Fatalf("logs exit %d: %s", code, stderr)
	}
	requireContains(t, out, "# run abc")
	requireContains(t, out, "WARN fuser: frame rate changed fps=25")
	if strings.Contains(out, "run started") {
		t.Fatalf("info line should be filtered: %q", out)
	}

	_, stderr, code = runCLI(t, []string{"logs", "nope"}, configPath)
	if code != 1 {
		t.Fatalf("expected exit 1 for unknown run, got %d", code)
	}
	requireContains(t, stderr, "no run logs found")
}
