package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
	if got := Failed([]Result{{Passed: true}, {Name: "x"}}); len(got) != 1 || got[0].Name != "x" {
		t.Fatalf("unexpected failed results: %#v", got)
	}
}

func TestCheckInput(t *testing.T) {
	dir := t.TempDir()
	if err := CheckInput(dir); !errors.Is(err, ErrInputEmpty) {
		t.Fatalf("expected ErrInputEmpty, got %v", err)
	}

	missing := filepath.Join(dir, "missing")
	if err := CheckInput(missing); !errors.Is(err, ErrInputEmpty) {
		t.Fatalf("expected ErrInputEmpty for missing dir, got %v", err)
	}
	if info, err := os.Stat(missing); err != nil || !info.IsDir() {
		t.Fatalf("expected missing input dir to be created: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bundle.zip"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := CheckInput(dir); err != nil {
		t.Fatalf("expected populated input to pass, got %v", err)
	}
}

func TestCheckOutput(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	if err := CheckOutput(out); err != nil {
		t.Fatalf("absent output should pass: %v", err)
	}
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		t.Fatalf("expected output dir created: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(out, "intermediate"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := CheckOutput(out); !errors.Is(err, ErrOutputNotEmpty) {
		t.Fatalf("expected ErrOutputNotEmpty, got %v", err)
	}
	if err := CheckOutput(out, "intermediate"); err != nil {
		t.Fatalf("allowed entry should pass: %v", err)
	}
}

func TestAllowedOutputEntry(t *testing.T) {
	tests := []struct {
		parent, child string
		want          string
		ok            bool
	}{
		{"/out", "/out/intermediate", "intermediate", true},
		{"/out", "/out/a/b", "", false},
		{"/out", "/elsewhere", "", false},
		{"/out", "/out", "", false},
	}
	for _, tt := range tests {
		got, ok := AllowedOutputEntry(tt.parent, tt.child)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("AllowedOutputEntry(%q, %q) = %q, %v", tt.parent, tt.child, got, ok)
		}
	}
}
