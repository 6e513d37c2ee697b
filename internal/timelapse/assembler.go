package timelapse

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"snaplapse/internal/config"
	"snaplapse/internal/fileutil"
	"snaplapse/internal/logging"
	"snaplapse/internal/manifest"
	"snaplapse/internal/storage"
)

var (
	// ErrNoFrames reports a bucket with no usable screenshots.
	ErrNoFrames = errors.New("no screenshots to assemble")
	// ErrAssemblyInProgress rejects a second concurrent assembly of one bucket.
	ErrAssemblyInProgress = errors.New("assembly already in progress for this date")
	// ErrArtifactExists reports an existing timelapse when Force is not set.
	ErrArtifactExists = errors.New("timelapse already exists")
)

const defaultFPS = 30

// Options tune a single Assemble call.
type Options struct {
	// Force replaces an existing artifact.
	Force bool
}

// Result describes a finished assembly.
type Result struct {
	DateKey       string
	ArtifactPath  string
	Frames        int
	Skipped       int
	// Width and Height are the stored video geometry, which may be padded
	// beyond the source frames by the encoder.
	Width         int
	Height        int
	Bytes         int64
	CorrelationID string
	Elapsed       time.Duration
}

// Recorder stores a description of each assembled artifact.
type Recorder interface {
	Upsert(ctx context.Context, rec manifest.Record) error
}

// Assembler builds per-day timelapse videos.
type Assembler struct {
	store    *storage.Store
	encoder  Encoder
	recorder Recorder
	logger   *slog.Logger
	fps      int
	policy   string
	now      func() time.Time

	active sync.Map
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithFPS sets the output frame rate.
func WithFPS(fps int) Option {
	return func(a *Assembler) {
		if fps > 0 {
			a.fps = fps
		}
	}
}

// WithMismatchPolicy selects how frames whose size differs from the first
// frame are handled.
func WithMismatchPolicy(policy string) Option {
	return func(a *Assembler) {
		if policy != "" {
			a.policy = policy
		}
	}
}

// WithRecorder records each assembled artifact in rec.
func WithRecorder(rec Recorder) Option {
	return func(a *Assembler) { a.recorder = rec }
}

// WithClock overrides the clock used to decide which bucket is today.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an Assembler writing through encoder.
func New(store *storage.Store, encoder Encoder, logger *slog.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		store:   store,
		encoder: encoder,
		logger:  logging.NewComponentLogger(logger, "timelapse"),
		fps:     defaultFPS,
		policy:  config.MismatchSkip,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig wires an ffmpeg-backed Assembler from cfg. rec may be nil.
func NewFromConfig(cfg *config.Config, store *storage.Store, rec Recorder, logger *slog.Logger) *Assembler {
	opts := []Option{
		WithFPS(cfg.Timelapse.FPS),
		WithMismatchPolicy(cfg.Timelapse.MismatchPolicy),
	}
	if rec != nil {
		opts = append(opts, WithRecorder(rec))
	}
	encoder := FFmpegEncoder{Binary: cfg.FFmpegBinary(), Logger: logging.NewComponentLogger(logger, "ffmpeg")}
	return New(store, encoder, logger, opts...)
}

// Today returns the date key of the current bucket.
func (a *Assembler) Today() string {
	return storage.DateKey(a.now())
}

// Assemble encodes the screenshots of dateKey into its timelapse artifact.
func (a *Assembler) Assemble(ctx context.Context, dateKey string, opts Options) (Result, error) {
	if !storage.ValidDateKey(dateKey) {
		return Result{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", dateKey)
	}
	if _, busy := a.active.LoadOrStore(dateKey, struct{}{}); busy {
		return Result{}, fmt.Errorf("%s: %w", dateKey, ErrAssemblyInProgress)
	}
	defer a.active.Delete(dateKey)

	correlationID, ok := logging.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = uuid.NewString()
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}
	ctx = logging.WithDateKey(ctx, dateKey)
	logger := logging.WithContext(ctx, a.logger)

	artifact := a.store.ArtifactPath(dateKey)
	exists, err := fileutil.Exists(artifact)
	if err != nil {
		return Result{}, fmt.Errorf("check artifact: %w", err)
	}
	if exists && !opts.Force {
		return Result{}, fmt.Errorf("%s: %w", artifact, ErrArtifactExists)
	}

	frames, err := a.store.Frames(dateKey)
	if err != nil {
		return Result{}, err
	}
	if len(frames) == 0 {
		logger.Info("no screenshots found; nothing to assemble", logging.String(logging.FieldEventType, "assembly_empty"))
		return Result{}, fmt.Errorf("%s: %w", dateKey, ErrNoFrames)
	}

	started := a.now()
	result, err := a.encode(ctx, logger, frames, artifact)
	if err != nil {
		logging.ErrorWithContext(logger, "timelapse assembly failed", "assembly_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffmpeg is installed and the timelapse directory is writable"),
		)
		return Result{}, err
	}
	result.DateKey = dateKey
	result.CorrelationID = correlationID
	result.Elapsed = a.now().Sub(started)
	if info, err := os.Stat(artifact); err == nil {
		result.Bytes = info.Size()
	}

	a.record(ctx, logger, result)
	logger.Info("timelapse assembled",
		logging.String("path", artifact),
		logging.Int("frames", result.Frames),
		logging.Int("skipped", result.Skipped),
		logging.Duration("elapsed", result.Elapsed),
		logging.Bool("replaced", exists),
		logging.String(logging.FieldEventType, "assembly_complete"),
	)
	return result, nil
}

// encode streams frames into a temporary file beside artifact and renames it
// into place once the encoder has finished.
func (a *Assembler) encode(ctx context.Context, logger *slog.Logger, frames []string, artifact string) (Result, error) {
	var (
		first   image.Image
		firstAt int
		result  = Result{ArtifactPath: artifact}
	)
	for i, path := range frames {
		img, err := imaging.Open(path)
		if err != nil {
			a.warnUnreadable(logger, path, err)
			result.Skipped++
			continue
		}
		first, firstAt = img, i
		break
	}
	if first == nil {
		return Result{}, fmt.Errorf("none of %d screenshots could be decoded: %w", len(frames), ErrNoFrames)
	}
	width, height := first.Bounds().Dx(), first.Bounds().Dy()

	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		return Result{}, fmt.Errorf("ensure timelapse directory: %w", err)
	}
	tmpPath := filepath.Join(filepath.Dir(artifact), ".assemble-"+filepath.Base(artifact)+".tmp")
	if err := fileutil.RemoveIfExists(tmpPath); err != nil {
		return Result{}, fmt.Errorf("remove stale temp file: %w", err)
	}

	writer, err := a.encoder.Open(ctx, tmpPath, width, height, a.fps)
	if err != nil {
		_ = fileutil.RemoveIfExists(tmpPath)
		return Result{}, fmt.Errorf("open encoder: %w", err)
	}
	fail := func(err error) (Result, error) {
		writer.Abort()
		_ = fileutil.RemoveIfExists(tmpPath)
		return Result{}, err
	}

	for i := firstAt; i < len(frames); i++ {
		img := first
		if i != firstAt {
			img, err = imaging.Open(frames[i])
			if err != nil {
				a.warnUnreadable(logger, frames[i], err)
				result.Skipped++
				continue
			}
		}
		frame, ok := fitFrame(img, width, height, a.policy)
		if !ok {
			logging.WarnWithContext(logger, "screenshot size differs from first frame; skipped", "frame_size_mismatch",
				logging.String("path", frames[i]),
				logging.Int("width", img.Bounds().Dx()),
				logging.Int("height", img.Bounds().Dy()),
				logging.String(logging.FieldImpact, "frame missing from timelapse"),
				logging.String(logging.FieldErrorHint, "set timelapse.mismatch_policy to resize or letterbox to keep such frames"),
			)
			result.Skipped++
			continue
		}
		if err := writer.WriteFrame(frame); err != nil {
			return fail(fmt.Errorf("encode %s: %w", filepath.Base(frames[i]), err))
		}
		result.Frames++
	}

	if err := writer.Close(); err != nil {
		_ = fileutil.RemoveIfExists(tmpPath)
		return Result{}, fmt.Errorf("finish encoding: %w", err)
	}
	if err := os.Rename(tmpPath, artifact); err != nil {
		_ = fileutil.RemoveIfExists(tmpPath)
		return Result{}, fmt.Errorf("move timelapse into place: %w", err)
	}
	result.Width, result.Height = width, height
	if sizer, ok := a.encoder.(OutputSizer); ok {
		result.Width, result.Height = sizer.OutputSize(width, height)
	}
	return result, nil
}

func (a *Assembler) warnUnreadable(logger *slog.Logger, path string, err error) {
	logging.WarnWithContext(logger, "screenshot unreadable; skipped", "frame_decode_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldImpact, "frame missing from timelapse"),
		logging.String(logging.FieldErrorHint, "the file may be truncated or not a JPEG"),
	)
}

func (a *Assembler) record(ctx context.Context, logger *slog.Logger, result Result) {
	if a.recorder == nil {
		return
	}
	err := a.recorder.Upsert(ctx, manifest.Record{
		DateKey:       result.DateKey,
		Path:          result.ArtifactPath,
		Frames:        result.Frames,
		Skipped:       result.Skipped,
		Bytes:         result.Bytes,
		FPS:           a.fps,
		Width:         result.Width,
		Height:        result.Height,
		CorrelationID: result.CorrelationID,
		CreatedAt:     a.now(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "manifest update failed", "manifest_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "listings may show stale frame counts"),
			logging.String(logging.FieldErrorHint, "the timelapse itself was written; delete manifest.db to rebuild"),
		)
	}
}
