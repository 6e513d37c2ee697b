package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"snaplapse/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SNAPLAPSE_ROOT_DIR", "")
	t.Setenv("SNAPLAPSE_FFMPEG", "")
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(home, "autoscreenshots"); cfg.Paths.RootDir != want {
		t.Fatalf("unexpected root dir: got %q want %q", cfg.Paths.RootDir, want)
	}
	if want := filepath.Join(home, ".local", "share", "snaplapse"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Capture.IntervalSeconds != 10 {
		t.Fatalf("unexpected interval: %d", cfg.Capture.IntervalSeconds)
	}
	if cfg.Capture.StorageQuality != 20 {
		t.Fatalf("unexpected storage quality: %d", cfg.Capture.StorageQuality)
	}
	if cfg.Dedup.Strategy != config.StrategyFingerprint {
		t.Fatalf("unexpected strategy: %q", cfg.Dedup.Strategy)
	}
	if cfg.Dedup.FingerprintQuality != 30 {
		t.Fatalf("unexpected fingerprint quality: %d", cfg.Dedup.FingerprintQuality)
	}
	if cfg.Timelapse.FPS != 30 {
		t.Fatalf("unexpected fps: %d", cfg.Timelapse.FPS)
	}
	if cfg.Timelapse.MismatchPolicy != config.MismatchSkip {
		t.Fatalf("unexpected mismatch policy: %q", cfg.Timelapse.MismatchPolicy)
	}
	if cfg.CaptureInterval().Seconds() != 10 {
		t.Fatalf("unexpected capture interval: %s", cfg.CaptureInterval())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.ScreenshotsDir(), cfg.TimelapsesDir(), cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "snaplapse.toml")

	type payload struct {
		Paths struct {
			RootDir string `toml:"root_dir"`
		} `toml:"paths"`
		Dedup struct {
			Strategy            string `toml:"strategy"`
			PerceptualThreshold int    `toml:"perceptual_threshold"`
		} `toml:"dedup"`
		Timelapse struct {
			FPS            int    `toml:"fps"`
			MismatchPolicy string `toml:"mismatch_policy"`
		} `toml:"timelapse"`
	}
	custom := payload{}
	custom.Paths.RootDir = filepath.Join(tempDir, "shots")
	custom.Dedup.Strategy = " Perceptual "
	custom.Dedup.PerceptualThreshold = 6
	custom.Timelapse.FPS = 12
	custom.Timelapse.MismatchPolicy = "LETTERBOX"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.RootDir != custom.Paths.RootDir {
		t.Fatalf("unexpected root dir: %q", cfg.Paths.RootDir)
	}
	if cfg.Dedup.Strategy != config.StrategyPerceptual {
		t.Fatalf("expected normalized strategy, got %q", cfg.Dedup.Strategy)
	}
	if cfg.Dedup.PerceptualThreshold != 6 {
		t.Fatalf("unexpected threshold: %d", cfg.Dedup.PerceptualThreshold)
	}
	if cfg.Timelapse.FPS != 12 {
		t.Fatalf("unexpected fps: %d", cfg.Timelapse.FPS)
	}
	if cfg.Timelapse.MismatchPolicy != config.MismatchLetterbox {
		t.Fatalf("unexpected mismatch policy: %q", cfg.Timelapse.MismatchPolicy)
	}
	if cfg.Capture.Hotkey != "ctrl+shift+alt+s" {
		t.Fatalf("expected default hotkey, got %q", cfg.Capture.Hotkey)
	}
}

func TestLoadEnvOverridesAndDotEnv(t *testing.T) {
	isolateEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "snaplapse.toml")
	if err := os.WriteFile(configPath, []byte("[capture]\ninterval_seconds = 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envRoot := filepath.Join(tempDir, "from-dotenv")
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("SNAPLAPSE_FFMPEG=/opt/ffmpeg/bin/ffmpeg\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SNAPLAPSE_ROOT_DIR", envRoot)
	// dotenv never overrides variables that already exist, even empty ones.
	os.Unsetenv("SNAPLAPSE_FFMPEG")
	t.Cleanup(func() { os.Unsetenv("SNAPLAPSE_FFMPEG") })

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.RootDir != envRoot {
		t.Fatalf("expected root dir from env, got %q", cfg.Paths.RootDir)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("expected ffmpeg from .env, got %q", cfg.FFmpegBinary())
	}
	if cfg.Capture.IntervalSeconds != 5 {
		t.Fatalf("unexpected interval: %d", cfg.Capture.IntervalSeconds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"interval", func(c *config.Config) { c.Capture.IntervalSeconds = 0 }, "capture.interval_seconds"},
		{"storage quality", func(c *config.Config) { c.Capture.StorageQuality = 101 }, "capture.storage_quality"},
		{"display", func(c *config.Config) { c.Capture.Display = -2 }, "capture.display"},
		{"strategy", func(c *config.Config) { c.Dedup.Strategy = "histogram" }, "dedup.strategy"},
		{"fingerprint quality", func(c *config.Config) { c.Dedup.FingerprintQuality = 0 }, "dedup.fingerprint_quality"},
		{"perceptual threshold", func(c *config.Config) {
			c.Dedup.Strategy = config.StrategyPerceptual
			c.Dedup.PerceptualThreshold = 65
		}, "dedup.perceptual_threshold"},
		{"fps", func(c *config.Config) { c.Timelapse.FPS = -1 }, "timelapse.fps"},
		{"mismatch", func(c *config.Config) { c.Timelapse.MismatchPolicy = "crop" }, "timelapse.mismatch_policy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.RootDir = t.TempDir()
			cfg.Paths.StateDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Timelapse.FPS != 30 {
		t.Fatalf("unexpected sample fps: %d", cfg.Timelapse.FPS)
	}
}
