package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.Fusion.TargetResolution = strings.ToLower(strings.TrimSpace(c.Fusion.TargetResolution))
	if c.Fusion.TargetResolution == "none" {
		c.Fusion.TargetResolution = ""
	}
	c.Run.Mode = lowerOr(c.Run.Mode, defaultRunMode)
	c.Run.OnError = lowerOr(c.Run.OnError, defaultOnError)
	c.Video.Backend = lowerOr(c.Video.Backend, defaultVideoBackend)
	c.Video.FFmpegBinary = trimOr(c.Video.FFmpegBinary, defaultFFmpegBinary)
	c.Video.FFprobeBinary = trimOr(c.Video.FFprobeBinary, defaultFFprobeBinary)
	c.Output.Compression = lowerOr(c.Output.Compression, defaultCompression)
	if c.Output.ChunkSize <= 0 {
		c.Output.ChunkSize = defaultChunkSize
	}
	c.Logging.Format = lowerOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" && c.Paths.OutputDir != "" {
		c.Paths.WorkDir = filepath.Join(c.Paths.OutputDir, defaultWorkDirName)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	if c.Run.LockDir, err = expandPath(trimOr(c.Run.LockDir, defaultLockDir)); err != nil {
		return fmt.Errorf("run.lock_dir: %w", err)
	}
	if c.Ledger.Path, err = expandPath(strings.TrimSpace(c.Ledger.Path)); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

func trimOr(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
