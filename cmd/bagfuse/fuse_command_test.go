package main

import (
	"os"
	"path/filepath"
	"testing"

	"bagfuse/internal/bag"
	"bagfuse/internal/testsupport"
)

func sessionFixture(name string) testsupport.BundleFixture {
	return testsupport.BundleFixture{
		Name: name,
		Cameras: []testsupport.CameraFixture{
			{Name: "csi", StartMS: 1673684144607, FPS: 30, Frames: []int{3}},
		},
		Topics:  []bag.Topic{{Name: "/imu", Type: "sensor_msgs/msg/Imu", Format: bag.SerializationCDR}},
		Entries: []bag.Entry{{Topic: "/imu", Data: []byte{1}, LogTime: 1}},
	}
}

func TestFuseCommandWithFlagOverridesAndHistory(t *testing.T) {
	isolateHome(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithLedger())
	base := testsupport.BaseDir(cfg)
	configPath := writeTestConfig(t, cfg)

	dec := testsupport.NewFakeDecoder()
	useDecoder(t, dec)
	input := filepath.Join(base, "flag-input")
	output := filepath.Join(base, "flag-output")
	testsupport.WriteBundle(t, input, dec, sessionFixture("session1"))

	stdout, stderr, code := runCLI(t, []string{"fuse", "--input-dir", input, "--output-dir", output, "--skip-frames", "1"}, configPath)
	if code != 0 {
		t.Fatalf("fuse exit %d: %s", code, stderr)
	}
	requireContains(t, stdout, "session1")
	requireContains(t, stdout, "succeeded")
	if _, err := os.Stat(filepath.Join(output, "session1", bag.MetadataFile)); err != nil {
		t.Fatalf("expected output bag under flag output dir: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("config output dir should be untouched, stat err %v", err)
	}

	logs, err := filepath.Glob(filepath.Join(cfg.Logging.Dir, "bagfuse-*.log"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one run log, got %v (%v)", logs, err)
	}

	stdout, stderr, code = runCLI(t, []string{"history"}, configPath)
	if code != 0 {
		t.Fatalf("history exit %d: %s", code, stderr)
	}
	requireContains(t, stdout, "succeeded")
	requireContains(t, stdout, output)
}

func TestFuseCommandMalformedNameExitsZero(t *testing.T) {
	isolateHome(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := writeTestConfig(t, cfg)
	dec := testsupport.NewFakeDecoder()
	useDecoder(t, dec)
	dir := testsupport.WriteBundle(t, cfg.Paths.InputDir, dec, sessionFixture("session1"))
	testsupport.WriteFile(t, filepath.Join(dir, "camera", "csi", "csi-bad.mp4"), 1)

	_, stderr, code := runCLI(t, []string{"fuse"}, configPath)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	requireContains(t, stderr, "malformed video filename")
}

func TestFuseCommandPreconditionsExitOne(t *testing.T) {
	isolateHome(t)
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := writeTestConfig(t, cfg)
	useDecoder(t, testsupport.NewFakeDecoder())

	_, stderr, code := runCLI(t, []string{"fuse"}, configPath)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "input directory is empty")

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "a.zip"), 1)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputDir, "old", "x"), 1)
	_, stderr, code = runCLI(t, []string{"fuse"}, configPath)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "output directory is not empty")
}

func TestFuseCommandRejectsInvalidFlag(t *testing.T) {
	isolateHome(t)
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	_, stderr, code := runCLI(t, []string{"fuse", "--jpeg-quality", "101"}, configPath)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "jpeg_quality")
}
