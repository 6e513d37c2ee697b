package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateTimelapse(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.RootDir == "" {
		return errors.New("paths.root_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.IntervalSeconds <= 0 {
		return errors.New("capture.interval_seconds must be positive")
	}
	if err := validateQuality("capture.storage_quality", c.Capture.StorageQuality); err != nil {
		return err
	}
	if c.Capture.Display < PrimaryScreen {
		return errors.New("capture.display must be -1 (primary screen) or a display index")
	}
	return nil
}

func (c *Config) validateDedup() error {
	switch c.Dedup.Strategy {
	case StrategyFingerprint:
		return validateQuality("dedup.fingerprint_quality", c.Dedup.FingerprintQuality)
	case StrategyPerceptual:
		if c.Dedup.PerceptualThreshold < 0 || c.Dedup.PerceptualThreshold > 64 {
			return errors.New("dedup.perceptual_threshold must be between 0 and 64")
		}
		return nil
	default:
		return fmt.Errorf("dedup.strategy: unsupported value %q (expected %s or %s)", c.Dedup.Strategy, StrategyFingerprint, StrategyPerceptual)
	}
}

func (c *Config) validateTimelapse() error {
	if c.Timelapse.FPS <= 0 {
		return errors.New("timelapse.fps must be positive")
	}
	switch c.Timelapse.MismatchPolicy {
	case MismatchSkip, MismatchResize, MismatchLetterbox:
	default:
		return fmt.Errorf("timelapse.mismatch_policy: unsupported value %q (expected skip, resize, or letterbox)", c.Timelapse.MismatchPolicy)
	}
	return nil
}

func validateQuality(key string, value int) error {
	if value < 1 || value > 100 {
		return fmt.Errorf("%s must be between 1 and 100", key)
	}
	return nil
}
