package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"snaplapse/internal/config"
	"snaplapse/internal/daemon"
	"snaplapse/internal/ipc"
	"snaplapse/internal/logging"
	"snaplapse/internal/storage"
	"snaplapse/internal/testsupport"
	"snaplapse/internal/timelapse"
)

type fakeScreen struct {
	mu    sync.Mutex
	frame *image.RGBA
}

func (s *fakeScreen) set(c color.RGBA) {
	s.mu.Lock()
	s.frame = testsupport.SolidFrame(32, 24, c)
	s.mu.Unlock()
}

func (s *fakeScreen) Capture(context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	store      *storage.Store
	screen     *fakeScreen
	encoder    *testsupport.RecordingEncoder
	daemon     *daemon.Daemon
}

// setupCLITestEnv writes a config file into a temp HOME. The daemon is only
// served over IPC after startDaemon.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript(testsupport.FFmpegCaptureScript))
	cfg.Capture.IntervalSeconds = 3600
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "snaplapse", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		store:      storage.FromConfig(cfg),
	}
}

func (env *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()
	logger := logging.NewNop()
	index := testsupport.MustOpenManifest(t, env.cfg)
	env.screen = &fakeScreen{}
	env.screen.set(color.RGBA{R: 180, A: 255})
	env.encoder = &testsupport.RecordingEncoder{}
	assembler := timelapse.New(env.store, env.encoder, logger, timelapse.WithRecorder(index))

	d, err := daemon.New(env.cfg, env.store, index, logger,
		daemon.WithSource(env.screen), daemon.WithAssembler(assembler))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	env.daemon = d

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	testsupport.WriteFile(t, path, data)
}

// seedBucket writes n distinct frames into the bucket for day.
func seedBucket(t *testing.T, store *storage.Store, day time.Time, n int) string {
	t.Helper()
	key := storage.DateKey(day)
	dir := store.BucketDir(key)
	for i := 0; i < n; i++ {
		at := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, i, 0, time.Local)
		c := color.RGBA{R: uint8(40 * i), G: 90, B: 30, A: 255}
		testsupport.WriteJPEG(t, filepath.Join(dir, storage.ScreenshotName(at)), 32, 24, c)
	}
	return key
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", substr, output)
	}
}
