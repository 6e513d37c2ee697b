package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the storage root and the daemon state directory.
type Paths struct {
	RootDir  string `toml:"root_dir"`
	StateDir string `toml:"state_dir"`
}

// Capture contains configuration for the periodic and hotkey capture tasks.
type Capture struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	StorageQuality  int    `toml:"storage_quality"`
	Display         int    `toml:"display"`
	HotkeyEnabled   bool   `toml:"hotkey_enabled"`
	Hotkey          string `toml:"hotkey"`
}

// Dedup contains configuration for consecutive-duplicate suppression.
type Dedup struct {
	// Strategy selects the active comparator: "fingerprint" or "perceptual".
	Strategy string `toml:"strategy"`
	// FingerprintQuality is the JPEG quality used for the fingerprint
	// re-encoding. It is independent of Capture.StorageQuality.
	FingerprintQuality int `toml:"fingerprint_quality"`
	// PerceptualThreshold is the maximum pHash Hamming distance treated as
	// "same frame" by the perceptual comparator.
	PerceptualThreshold int `toml:"perceptual_threshold"`
}

// Timelapse contains configuration for artifact assembly.
type Timelapse struct {
	FPS            int    `toml:"fps"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	MismatchPolicy string `toml:"mismatch_policy"`
	BacklogOnStart bool   `toml:"backlog_on_start"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for snaplapse.
//
// Configuration sections by subsystem:
//   - Paths: storage root and daemon state directory
//   - Capture: interval, storage JPEG quality, display, hotkey
//   - Dedup: comparator strategy and its thresholds
//   - Timelapse: frame rate, ffmpeg binary, geometry mismatch policy
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Capture   Capture   `toml:"capture"`
	Dedup     Dedup     `toml:"dedup"`
	Timelapse Timelapse `toml:"timelapse"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/snaplapse/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadEnvFile(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadEnvFile seeds the process environment from an optional dotenv file.
// Variables already present in the environment win.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
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

	projectPath, err := filepath.Abs("snaplapse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to. Failure is
// fatal: capture must never continue against a directory that does not exist.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.ScreenshotsDir(), c.TimelapsesDir(), c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ScreenshotsDir is the parent of all date bucket directories.
func (c *Config) ScreenshotsDir() string {
	return filepath.Join(c.Paths.RootDir, "screenshots")
}

// TimelapsesDir holds every timelapse artifact.
func (c *Config) TimelapsesDir() string {
	return filepath.Join(c.Paths.RootDir, "timelapses")
}

// SocketPath is the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "snaplapse.sock")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "snaplapse.lock")
}

// PIDPath is where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "snaplapse.pid")
}

// CurrentLogPath points at the log of the most recent daemon run.
func (c *Config) CurrentLogPath() string {
	return filepath.Join(c.Paths.StateDir, "snaplapse.log")
}

// ManifestPath is the SQLite artifact index.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.StateDir, "manifest.db")
}

// CaptureInterval returns the periodic capture interval.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.IntervalSeconds) * time.Second
}

// FFmpegBinary returns the configured ffmpeg command.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Timelapse.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
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
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
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
