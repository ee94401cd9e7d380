package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFusion(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	switch c.Video.Backend {
	case "ffmpeg", "opencv":
	default:
		return fmt.Errorf("video.backend: unsupported value %q (want ffmpeg or opencv)", c.Video.Backend)
	}
	switch c.Output.Compression {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("output.compression: unsupported value %q (want zstd, lz4 or none)", c.Output.Compression)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return errors.New("ledger.path must be set when the ledger is enabled")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return errors.New("paths.input_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if filepath.Clean(c.Paths.InputDir) == filepath.Clean(c.Paths.OutputDir) {
		return errors.New("paths.input_dir and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateFusion() error {
	if c.Fusion.JPEGQuality < 0 || c.Fusion.JPEGQuality > 100 {
		return fmt.Errorf("fusion.jpeg_quality must be between 0 and 100, got %d", c.Fusion.JPEGQuality)
	}
	if c.Fusion.SkipFrames < 0 {
		return fmt.Errorf("fusion.skip_frames must be zero or positive, got %d", c.Fusion.SkipFrames)
	}
	if res := c.Fusion.TargetResolution; res != "" {
		width, height, ok := strings.Cut(res, "x")
		if !ok || !positiveInt(width) || !positiveInt(height) {
			return fmt.Errorf("fusion.target_resolution must look like 1280x720, got %q", res)
		}
	}
	return nil
}

func (c *Config) validateRun() error {
	switch c.Run.Mode {
	case ModeExtract, ModeReuse:
	default:
		return fmt.Errorf("run.mode: unsupported value %q (want %s or %s)", c.Run.Mode, ModeExtract, ModeReuse)
	}
	switch c.Run.OnError {
	case OnErrorAbort, OnErrorContinue:
	default:
		return fmt.Errorf("run.on_error: unsupported value %q (want %s or %s)", c.Run.OnError, OnErrorAbort, OnErrorContinue)
	}
	return nil
}

func positiveInt(value string) bool {
	n, err := strconv.Atoi(value)
	return err == nil && n > 0
}
