package dedup

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"snaplapse/internal/logging"
	"snaplapse/internal/storage"
)

// Outcome classifies a Consider call.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCollision Outcome = "collision"
)

// Decision is the result of considering one frame. Path is set for accepted
// frames and for collisions (the file that was kept).
type Decision struct {
	Outcome Outcome
	Path    string
	At      time.Time
}

// Persister writes an accepted frame to durable storage.
type Persister interface {
	Persist(frame image.Image, at time.Time) (string, error)
}

// Stats summarizes decisions since the Deduplicator was created.
type Stats struct {
	Strategy     string
	Accepted     int64
	Skipped      int64
	Collisions   int64
	LastAccepted time.Time
	LastPath     string
}

// Deduplicator owns the last-accepted fingerprint slot.
type Deduplicator struct {
	mu         sync.Mutex
	comparator Comparator
	persister  Persister
	logger     *slog.Logger
	now        func() time.Time

	last  Fingerprint
	stats Stats
}

// Option customizes a Deduplicator.
type Option func(*Deduplicator)

// WithClock overrides the time source used to name persisted frames.
func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) {
		if now != nil {
			d.now = now
		}
	}
}

// New constructs a Deduplicator with an empty fingerprint slot.
func New(comparator Comparator, persister Persister, logger *slog.Logger, opts ...Option) *Deduplicator {
	d := &Deduplicator{
		comparator: comparator,
		persister:  persister,
		logger:     logging.NewComponentLogger(logger, "dedup"),
		now:        time.Now,
	}
	d.stats.Strategy = comparator.Name()
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Consider fingerprints frame and persists it unless it matches the last
// accepted frame. When persistence fails the slot is restored so the same
// screen is retried on the next capture.
func (d *Deduplicator) Consider(ctx context.Context, frame image.Image) (Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	fp, err := d.comparator.Fingerprint(frame)
	if err != nil {
		return Decision{}, fmt.Errorf("fingerprint frame: %w", err)
	}
	at := d.now()

	if d.last != nil && d.comparator.Same(d.last, fp) {
		d.stats.Skipped++
		d.logger.Debug("frame unchanged; skipped", logging.String(logging.FieldEventType, "frame_skipped"))
		return Decision{Outcome: OutcomeSkipped, At: at}, nil
	}

	previous := d.last
	d.last = fp
	path, err := d.persister.Persist(frame, at)
	switch {
	case errors.Is(err, storage.ErrFrameExists):
		d.last = previous
		d.stats.Collisions++
		logging.WarnWithContext(d.logger, "screenshot already taken this second; keeping the first", "frame_collision",
			logging.String("path", path),
			logging.String(logging.FieldImpact, "capture not stored"),
			logging.String(logging.FieldErrorHint, "captures closer than one second share a filename"),
		)
		return Decision{Outcome: OutcomeCollision, Path: path, At: at}, nil
	case err != nil:
		d.last = previous
		return Decision{}, fmt.Errorf("persist frame: %w", err)
	}

	d.stats.Accepted++
	d.stats.LastAccepted = at
	d.stats.LastPath = path
	d.logger.Info("screenshot saved",
		logging.String("path", path),
		logging.String(logging.FieldDateKey, storage.DateKey(at)),
		logging.String(logging.FieldEventType, "frame_accepted"),
	)
	return Decision{Outcome: OutcomeAccepted, Path: path, At: at}, nil
}

// Stats returns a snapshot of the decision counters.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Reset clears the fingerprint slot so the next frame is always accepted.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	d.last = nil
	d.mu.Unlock()
}
