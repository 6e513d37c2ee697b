package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"snaplapse/internal/config"
	"snaplapse/internal/daemon"
	"snaplapse/internal/ipc"
	"snaplapse/internal/logging"
	"snaplapse/internal/manifest"
	"snaplapse/internal/preflight"
	"snaplapse/internal/storage"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// DaemonOptions are passed through to daemon.New.
	DaemonOptions []daemon.Option
}

// Run starts the snaplapse daemon and blocks until it is stopped over IPC or
// the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logDir := cfg.Paths.StateDir
	logPath := filepath.Join(logDir, fmt.Sprintf("snaplapse-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	fileHandler, logFile, err := logging.OpenJSONFile(logPath, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to open log file: %v\n", err)
	} else {
		defer logFile.Close()
		logger = logging.TeeLogger(logger, fileHandler)
		if err := ensureCurrentLogPointer(cfg.CurrentLogPath(), logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update snaplapse.log link: %v\n", err)
		}
	}

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: logDir, Pattern: "snaplapse-*.log", Keep: []string{logPath}},
	)
	logPreflight(signalCtx, logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	index, err := manifest.Open(signalCtx, cfg.ManifestPath())
	if err != nil {
		logging.WarnWithContext(logger, "manifest unavailable; continuing without it", "manifest_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "list and status omit assembly details"),
			logging.String(logging.FieldErrorHint, "delete "+cfg.ManifestPath()+" to rebuild it"),
		)
		index = nil
	}

	daemonOpts := append([]daemon.Option{daemon.WithLogPath(logPath)}, opts.DaemonOptions...)
	d, err := daemon.New(cfg, storage.FromConfig(cfg), index, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("snaplapse daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "capture or assembly may fail"),
			logging.String(logging.FieldErrorHint, "run snaplapse status for details"),
		)
	}
	logger.Info("preflight complete",
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
		logging.String(logging.FieldEventType, "preflight_complete"),
	)
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
