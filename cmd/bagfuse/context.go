package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bagfuse/internal/config"
	"bagfuse/internal/video"
)

// newDecoder builds the configured video backend. Tests replace it.
var newDecoder = func(cfg *config.Config) (video.Decoder, error) {
	return video.NewDecoder(cfg.Video.Backend, cfg.Video.FFmpegBinary, cfg.Video.FFprobeBinary)
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

type commandContext struct {
	flags     *globalFlags
	overrides []func(*config.Config)

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// addOverride registers a flag layer applied after file and environment
// values. Overrides must only touch fields whose flags were set.
func (c *commandContext) addOverride(fn func(*config.Config)) {
	c.overrides = append(c.overrides, fn)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.flags.configPath)
		cfg, resolved, exists, err := config.LoadWithOverrides(path, c.applyOverrides)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) {
	if level := strings.TrimSpace(c.flags.logLevel); level != "" {
		cfg.Logging.Level = level
	}
	if format := strings.TrimSpace(c.flags.logFormat); format != "" {
		cfg.Logging.Format = format
	}
	for _, fn := range c.overrides {
		fn(cfg)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
