package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"snaplapse/internal/config"
)

// FFmpegCaptureScript is a stand-in ffmpeg that copies its stdin into the
// last argument, so tests can inspect the raw frames an encoder was fed.
const FFmpegCaptureScript = "#!/bin/sh\nfor last; do :; done\ncat > \"$last\"\n"

// FFmpegFailScript is a stand-in ffmpeg that exits with an error.
const FFmpegFailScript = "#!/bin/sh\necho 'encoder exploded' >&2\nexit 1\n"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RootDir = filepath.Join(base, "root")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Capture.HotkeyEnabled = false
	cfgVal.Timelapse.BacklogOnStart = false

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMismatchPolicy sets timelapse.mismatch_policy.
func WithMismatchPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timelapse.MismatchPolicy = policy
	}
}

// WithStrategy sets dedup.strategy.
func WithStrategy(strategy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dedup.Strategy = strategy
	}
}

// WithFFmpegScript writes script as an executable and points
// timelapse.ffmpeg_binary at it.
func WithFFmpegScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timelapse.FFmpegBinary = writeStub(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", script)
	}
}

// WithStubbedBinaries writes no-op executables for the provided names and
// prepends them to PATH. With no names, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			writeStub(b.t, binDir, name, "#!/bin/sh\nexit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

func writeStub(t testing.TB, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RootDir)
}
