package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeDedup()
	c.normalizeTimelapse()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("SNAPLAPSE_ROOT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.RootDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.RootDir) == "" {
		c.Paths.RootDir = defaultRootDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	var err error
	if c.Paths.RootDir, err = expandPath(c.Paths.RootDir); err != nil {
		return fmt.Errorf("paths.root_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Hotkey = strings.ToLower(strings.TrimSpace(c.Capture.Hotkey))
	if c.Capture.Hotkey == "" {
		c.Capture.Hotkey = defaultHotkey
	}
}

func (c *Config) normalizeDedup() {
	c.Dedup.Strategy = strings.ToLower(strings.TrimSpace(c.Dedup.Strategy))
	if c.Dedup.Strategy == "" {
		c.Dedup.Strategy = defaultDedupStrategy
	}
}

func (c *Config) normalizeTimelapse() {
	if value, ok := os.LookupEnv("SNAPLAPSE_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Timelapse.FFmpegBinary = strings.TrimSpace(value)
	}
	c.Timelapse.FFmpegBinary = strings.TrimSpace(c.Timelapse.FFmpegBinary)
	if c.Timelapse.FFmpegBinary == "" {
		c.Timelapse.FFmpegBinary = defaultFFmpegBinary
	}
	c.Timelapse.MismatchPolicy = strings.ToLower(strings.TrimSpace(c.Timelapse.MismatchPolicy))
	if c.Timelapse.MismatchPolicy == "" {
		c.Timelapse.MismatchPolicy = defaultMismatchPolicy
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
