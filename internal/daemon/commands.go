package daemon

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"snaplapse/internal/dedup"
	"snaplapse/internal/deps"
	"snaplapse/internal/logging"
	"snaplapse/internal/manifest"
	"snaplapse/internal/storage"
	"snaplapse/internal/timelapse"
)

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	StartedAt        time.Time
	LockPath         string
	LogPath          string
	ManifestPath     string
	ScreenshotsDir   string
	TimelapsesDir    string
	Today            string
	TodayFrames      int
	Dedup            dedup.Stats
	Hotkey           string
	LastCaptureError string
	LastBacklog      *timelapse.ScanReport
	Dependencies     []deps.Status
}

// BucketInfo joins a bucket on disk with its manifest record, if any.
type BucketInfo struct {
	storage.BucketSummary
	Record *manifest.Record
}

// CaptureNow runs one capture through the same pipeline as the timers.
func (d *Daemon) CaptureNow(ctx context.Context) (dedup.Decision, error) {
	return d.captureOnce(ctx, triggerCommand)
}

// Assemble builds the timelapse for dateKey, defaulting to today. Force
// replaces an existing artifact.
func (d *Daemon) Assemble(ctx context.Context, dateKey string, force bool) (timelapse.Result, error) {
	dateKey = strings.TrimSpace(dateKey)
	if dateKey == "" {
		dateKey = d.assembler.Today()
	}
	return d.assembler.Assemble(ctx, dateKey, timelapse.Options{Force: force})
}

// Backlog runs the bucket scan on demand.
func (d *Daemon) Backlog(ctx context.Context, includeToday bool) (timelapse.ScanReport, error) {
	report, err := d.assembler.ScanAndBacklog(ctx, includeToday)
	if err == nil {
		d.lastBacklog.Store(&report)
	}
	return report, err
}

// TodayFolder returns today's bucket directory, creating it so a file
// manager can open it before the first capture of the day.
func (d *Daemon) TodayFolder() (string, error) {
	dir := d.store.BucketDir(d.assembler.Today())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create today's folder: %w", err)
	}
	return dir, nil
}

// Buckets lists every bucket with its manifest record. Records whose
// artifact no longer exists are pruned first.
func (d *Daemon) Buckets(ctx context.Context) ([]BucketInfo, error) {
	summaries, err := d.store.Summaries()
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	records := map[string]manifest.Record{}
	if d.index != nil {
		if removed, err := d.index.Reconcile(ctx, artifactExists); err != nil {
			logging.WarnWithContext(d.logger, "manifest reconcile failed", "manifest_reconcile_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "listing may show stale manifest details"),
			)
		} else if len(removed) > 0 {
			d.logger.Info("pruned manifest records for missing timelapses",
				logging.Int("removed", len(removed)),
				logging.String(logging.FieldEventType, "manifest_reconciled"),
			)
		}
		list, err := d.index.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		for _, rec := range list {
			records[rec.DateKey] = rec
		}
	}

	out := make([]BucketInfo, 0, len(summaries))
	for _, summary := range summaries {
		info := BucketInfo{BucketSummary: summary}
		if rec, ok := records[summary.DateKey]; ok {
			info.Record = &rec
		}
		out = append(out, info)
	}
	return out, nil
}

func artifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) Status {
	today := d.assembler.Today()
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockPath:       d.lockPath,
		LogPath:        d.logPath,
		ScreenshotsDir: d.store.ScreenshotsDir(),
		TimelapsesDir:  d.store.TimelapsesDir(),
		Today:          today,
		Dedup:          d.dedup.Stats(),
		Hotkey:         d.hotkeyState.Load().(string),
		Dependencies:   deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if status.Running {
		d.mu.Lock()
		status.StartedAt = d.startedAt
		d.mu.Unlock()
	}
	if d.index != nil {
		status.ManifestPath = d.index.Path()
	}
	if frames, err := d.store.Frames(today); err == nil {
		status.TodayFrames = len(frames)
	}
	if msg, _ := d.captureError.Load().(string); msg != "" {
		status.LastCaptureError = msg
	}
	status.LastBacklog = d.lastBacklog.Load()
	return status
}
