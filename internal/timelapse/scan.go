package timelapse

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"snaplapse/internal/logging"
)

// BucketStatus is the scan outcome for one bucket.
type BucketStatus string

const (
	StatusAssembled       BucketStatus = "assembled"
	StatusSkippedExisting BucketStatus = "skipped_existing"
	StatusSkippedEmpty    BucketStatus = "skipped_empty"
	StatusSkippedToday    BucketStatus = "skipped_today"
	StatusFailed          BucketStatus = "failed"
)

// BucketReport describes what the scan did with one bucket.
type BucketReport struct {
	DateKey      string
	Status       BucketStatus
	Frames       int
	Skipped      int
	ArtifactPath string
	Error        string
}

// ScanReport lists bucket outcomes oldest first.
type ScanReport struct {
	CorrelationID string
	Buckets       []BucketReport
}

// Count returns how many buckets ended with status.
func (r ScanReport) Count(status BucketStatus) int {
	n := 0
	for _, b := range r.Buckets {
		if b.Status == status {
			n++
		}
	}
	return n
}

// ScanAndBacklog assembles every bucket that has screenshots but no artifact.
// Today's bucket is still being written to and is skipped unless
// includeToday is set. Existing artifacts are never replaced. A failing
// bucket is logged and the scan moves on.
func (a *Assembler) ScanAndBacklog(ctx context.Context, includeToday bool) (ScanReport, error) {
	correlationID, ok := logging.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = uuid.NewString()
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}
	logger := logging.WithContext(ctx, a.logger)
	report := ScanReport{CorrelationID: correlationID}

	keys, err := a.store.Buckets()
	if err != nil {
		return report, err
	}
	today := a.Today()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry := BucketReport{DateKey: key, ArtifactPath: a.store.ArtifactPath(key)}
		if key == today && !includeToday {
			entry.Status = StatusSkippedToday
			report.Buckets = append(report.Buckets, entry)
			continue
		}

		result, err := a.Assemble(ctx, key, Options{})
		switch {
		case err == nil:
			entry.Status = StatusAssembled
			entry.Frames = result.Frames
			entry.Skipped = result.Skipped
		case errors.Is(err, ErrArtifactExists):
			entry.Status = StatusSkippedExisting
		case errors.Is(err, ErrNoFrames):
			entry.Status = StatusSkippedEmpty
		default:
			entry.Status = StatusFailed
			entry.Error = err.Error()
			logging.WarnWithContext(logger, "backlog assembly failed; continuing with next date", "backlog_bucket_failed",
				logging.String(logging.FieldDateKey, key),
				logging.Error(err),
				logging.String(logging.FieldImpact, "timelapse for this date not created"),
				logging.String(logging.FieldErrorHint, "run snaplapse assemble --date "+key+" after fixing the cause"),
			)
		}
		report.Buckets = append(report.Buckets, entry)
	}

	logger.Info("backlog scan complete",
		logging.Int("buckets", len(report.Buckets)),
		logging.Int("assembled", report.Count(StatusAssembled)),
		logging.Int("failed", report.Count(StatusFailed)),
		logging.String(logging.FieldEventType, "backlog_complete"),
	)
	return report, nil
}
