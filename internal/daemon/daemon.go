package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"snaplapse/internal/capture"
	"snaplapse/internal/config"
	"snaplapse/internal/dedup"
	"snaplapse/internal/hotkey"
	"snaplapse/internal/logging"
	"snaplapse/internal/manifest"
	"snaplapse/internal/storage"
	"snaplapse/internal/timelapse"
)

// ErrAlreadyRunning is returned by Start when the daemon is active.
var ErrAlreadyRunning = errors.New("daemon already running")

// RegisterFunc claims a global hotkey.
type RegisterFunc func(hotkey.Combo) (hotkey.Registrar, error)

// Daemon supervises capture and assembly and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *storage.Store
	index     *manifest.Store
	dedup     *dedup.Deduplicator
	assembler *timelapse.Assembler
	source    capture.Source
	register  RegisterFunc
	logPath   string

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	startedAt time.Time

	hotkeyState  atomic.Value // string
	captureError atomic.Value // string
	lastBacklog  atomic.Pointer[timelapse.ScanReport]
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithSource replaces the screen capture source.
func WithSource(src capture.Source) Option {
	return func(d *Daemon) {
		if src != nil {
			d.source = src
		}
	}
}

// WithHotkeyRegistrar replaces the platform hotkey registrar.
func WithHotkeyRegistrar(fn RegisterFunc) Option {
	return func(d *Daemon) {
		if fn != nil {
			d.register = fn
		}
	}
}

// WithAssembler replaces the ffmpeg-backed assembler.
func WithAssembler(a *timelapse.Assembler) Option {
	return func(d *Daemon) {
		if a != nil {
			d.assembler = a
		}
	}
}

// WithLogPath records the active log file for status output.
func WithLogPath(path string) Option {
	return func(d *Daemon) {
		d.logPath = path
	}
}

// New constructs a daemon over store. index may be nil when the manifest
// could not be opened; listings then fall back to the filesystem alone.
func New(cfg *config.Config, store *storage.Store, index *manifest.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and storage")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	comparator, err := dedup.NewComparator(cfg.Dedup)
	if err != nil {
		return nil, fmt.Errorf("dedup comparator: %w", err)
	}

	var recorder timelapse.Recorder
	if index != nil {
		recorder = index
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		index:     index,
		dedup:     dedup.New(comparator, store, logger),
		assembler: timelapse.NewFromConfig(cfg, store, recorder, logger),
		source:    capture.NewScreenSource(cfg.Capture.Display),
		register:  hotkey.Register,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.hotkeyState.Store("disabled")
	d.captureError.Store("")
	return d, nil
}

// Start acquires the daemon lock and launches the capture tasks and, when
// configured, the backlog pass.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return ErrAlreadyRunning
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another snaplapse daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)

	d.spawn(func() { d.captureLoop(runCtx) })
	if d.cfg.Capture.HotkeyEnabled {
		d.spawn(func() { d.hotkeyLoop(runCtx) })
	}
	if d.cfg.Timelapse.BacklogOnStart {
		d.spawn(func() { d.startupBacklog(runCtx) })
	}

	d.logger.Info("snaplapse daemon started",
		logging.String("lock", d.lockPath),
		logging.String("root", d.cfg.Paths.RootDir),
		logging.Duration("interval", d.cfg.CaptureInterval()),
		logging.String("dedup_strategy", d.dedup.Stats().Strategy),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

func (d *Daemon) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// Stop cancels the capture tasks, waits for them to reach a safe point, and
// releases the daemon lock. Done is closed afterwards.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports another instance"),
		)
	}
	d.running.Store(false)
	select {
	case <-d.done:
	default:
		close(d.done)
	}
	d.logger.Info("snaplapse daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Done is closed the first time Stop completes. The runner exits on it.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Close stops the daemon and releases the manifest.
func (d *Daemon) Close() error {
	d.Stop()
	if d.index != nil {
		return d.index.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LockPath returns the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}
