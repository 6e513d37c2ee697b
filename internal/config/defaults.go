package config

const (
	defaultRootDir             = "~/autoscreenshots"
	defaultStateDir            = "~/.local/share/snaplapse"
	defaultCaptureInterval     = 10
	defaultStorageQuality      = 20
	defaultDisplay             = PrimaryScreen
	defaultHotkey              = "ctrl+shift+alt+s"
	defaultDedupStrategy       = "fingerprint"
	defaultFingerprintQuality  = 30
	defaultPerceptualThreshold = 10
	defaultFPS                 = 30
	defaultFFmpegBinary        = "ffmpeg"
	defaultMismatchPolicy      = "skip"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Dedup strategies.
const (
	StrategyFingerprint = "fingerprint"
	StrategyPerceptual  = "perceptual"
)

// PrimaryScreen selects the platform's main screen instead of a numbered
// display.
const PrimaryScreen = -1

// Frame geometry mismatch policies.
const (
	MismatchSkip      = "skip"
	MismatchResize    = "resize"
	MismatchLetterbox = "letterbox"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RootDir:  defaultRootDir,
			StateDir: defaultStateDir,
		},
		Capture: Capture{
			IntervalSeconds: defaultCaptureInterval,
			StorageQuality:  defaultStorageQuality,
			Display:         defaultDisplay,
			HotkeyEnabled:   true,
			Hotkey:          defaultHotkey,
		},
		Dedup: Dedup{
			Strategy:            defaultDedupStrategy,
			FingerprintQuality:  defaultFingerprintQuality,
			PerceptualThreshold: defaultPerceptualThreshold,
		},
		Timelapse: Timelapse{
			FPS:            defaultFPS,
			FFmpegBinary:   defaultFFmpegBinary,
			MismatchPolicy: defaultMismatchPolicy,
			BacklogOnStart: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
