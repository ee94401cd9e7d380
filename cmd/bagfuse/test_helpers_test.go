package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bagfuse/internal/config"
	"bagfuse/internal/video"
)

func runCLI(t *testing.T, args []string, configPath string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	code := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(filepath.Dir(cfg.Paths.InputDir), "bagfuse.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func useDecoder(t *testing.T, dec video.Decoder) {
	t.Helper()
	previous := newDecoder
	newDecoder = func(*config.Config) (video.Decoder, error) { return dec, nil }
	t.Cleanup(func() { newDecoder = previous })
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
