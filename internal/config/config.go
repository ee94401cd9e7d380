package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BAGFUSE_"

// Paths contains the input, output and scratch directories.
type Paths struct {
	InputDir  string `toml:"input_dir" env:"INPUT_DIR"`
	OutputDir string `toml:"output_dir" env:"OUTPUT_DIR"`
	// WorkDir receives extracted bundles. Defaults to <output_dir>/intermediate.
	WorkDir string `toml:"work_dir" env:"WORK_DIR"`
}

// Fusion controls how video frames become image messages.
type Fusion struct {
	Raw              bool   `toml:"raw" env:"RAW"`
	JPEGQuality      int    `toml:"jpeg_quality" env:"JPEG_QUALITY"`
	SkipFrames       int    `toml:"skip_frames" env:"SKIP_FRAMES"`
	TargetResolution string `toml:"target_resolution" env:"TARGET_RESOLUTION"`
	// TimestampOffsetMS is added to every video timestamp.
	TimestampOffsetMS int64 `toml:"video_timestamp_offset_ms" env:"VIDEO_TIMESTAMP_OFFSET_MS"`
}

// Run controls orchestration policy.
type Run struct {
	// Mode is "extract" (unzip archives first) or "reuse" (use the work
	// directory as left by a previous run).
	Mode string `toml:"mode" env:"MODE"`
	// OnError is "abort" or "continue" when a bundle fails.
	OnError string `toml:"on_error" env:"ON_ERROR"`
	// LockDir holds the per-output lock files that keep two runs off the
	// same output directory.
	LockDir string `toml:"lock_dir" env:"LOCK_DIR"`
}

// Video selects the decoder backend.
type Video struct {
	Backend       string `toml:"backend" env:"BACKEND"`
	FFmpegBinary  string `toml:"ffmpeg_binary" env:"FFMPEG_BINARY"`
	FFprobeBinary string `toml:"ffprobe_binary" env:"FFPROBE_BINARY"`
	// CountFrames probes every segment up front to size progress bars.
	CountFrames bool `toml:"count_frames" env:"COUNT_FRAMES"`
}

// Output controls the MCAP container written per bundle.
type Output struct {
	Compression string `toml:"compression" env:"COMPRESSION"`
	ChunkSize   int64  `toml:"chunk_size" env:"CHUNK_SIZE"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" env:"FORMAT"`
	Level         string `toml:"level" env:"LEVEL"`
	Dir           string `toml:"dir" env:"DIR"`
	RetentionDays int    `toml:"retention_days" env:"RETENTION_DAYS"`
}

// Ledger configures the SQLite run history.
type Ledger struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	Path    string `toml:"path" env:"PATH"`
}

// Config encapsulates all configuration values for bagfuse.
type Config struct {
	Paths   Paths   `toml:"paths" envPrefix:"PATHS_"`
	Fusion  Fusion  `toml:"fusion" envPrefix:"FUSION_"`
	Run     Run     `toml:"run" envPrefix:"RUN_"`
	Video   Video   `toml:"video" envPrefix:"VIDEO_"`
	Output  Output  `toml:"output" envPrefix:"OUTPUT_"`
	Logging Logging `toml:"logging" envPrefix:"LOGGING_"`
	Ledger  Ledger  `toml:"ledger" envPrefix:"LEDGER_"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bagfuse/config.toml")
}

// Load locates, parses, and validates a configuration file.
func Load(path string) (*Config, string, bool, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with a hook applied after the file and
// environment layers but before normalization and validation. The CLI uses it
// to apply flags.
func LoadWithOverrides(path string, override func(*Config)) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, "", false, fmt.Errorf("parse env: %w", err)
	}

	if override != nil {
		override(&cfg)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("bagfuse.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
