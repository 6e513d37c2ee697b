package ipc

import (
	"snaplapse/internal/daemon"
	"snaplapse/internal/dedup"
	"snaplapse/internal/deps"
	"snaplapse/internal/timelapse"
)

// FromStatus converts daemon status for the wire.
func FromStatus(status daemon.Status) StatusResponse {
	resp := StatusResponse{
		Running:          status.Running,
		PID:              status.PID,
		StartedAt:        status.StartedAt,
		LockPath:         status.LockPath,
		LogPath:          status.LogPath,
		ManifestPath:     status.ManifestPath,
		ScreenshotsDir:   status.ScreenshotsDir,
		TimelapsesDir:    status.TimelapsesDir,
		Today:            status.Today,
		TodayFrames:      status.TodayFrames,
		Dedup:            fromStats(status.Dedup),
		Hotkey:           status.Hotkey,
		LastCaptureError: status.LastCaptureError,
		Dependencies:     FromDependencies(status.Dependencies),
	}
	if status.LastBacklog != nil {
		backlog := FromScanReport(*status.LastBacklog)
		resp.LastBacklog = &backlog
	}
	return resp
}

func fromStats(s dedup.Stats) DedupStats {
	return DedupStats{
		Strategy:     s.Strategy,
		Accepted:     s.Accepted,
		Skipped:      s.Skipped,
		Collisions:   s.Collisions,
		LastAccepted: s.LastAccepted,
		LastPath:     s.LastPath,
	}
}

// FromDependencies converts dependency checks for the wire.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromScanReport converts a backlog report for the wire.
func FromScanReport(report timelapse.ScanReport) BacklogResponse {
	resp := BacklogResponse{
		CorrelationID: report.CorrelationID,
		Buckets:       make([]BacklogBucket, 0, len(report.Buckets)),
	}
	for _, b := range report.Buckets {
		resp.Buckets = append(resp.Buckets, BacklogBucket{
			Date:    b.DateKey,
			Status:  string(b.Status),
			Frames:  b.Frames,
			Skipped: b.Skipped,
			Path:    b.ArtifactPath,
			Error:   b.Error,
		})
	}
	return resp
}

// FromBuckets converts bucket listings for the wire.
func FromBuckets(infos []daemon.BucketInfo) []Bucket {
	out := make([]Bucket, 0, len(infos))
	for _, info := range infos {
		b := Bucket{
			Date:          info.DateKey,
			Frames:        info.Frames,
			Artifact:      info.Artifact,
			ArtifactPath:  info.ArtifactPath,
			ArtifactBytes: info.ArtifactBytes,
		}
		if info.Record != nil {
			at := info.Record.CreatedAt
			b.AssembledAt = &at
			b.SkippedFrames = info.Record.Skipped
		}
		out = append(out, b)
	}
	return out
}

// FromResult converts an assembly result into its wire form.
func FromResult(r timelapse.Result) AssembleResponse {
	return AssembleResponse{
		Date:          r.DateKey,
		Path:          r.ArtifactPath,
		Frames:        r.Frames,
		Skipped:       r.Skipped,
		Width:         r.Width,
		Height:        r.Height,
		Bytes:         r.Bytes,
		CorrelationID: r.CorrelationID,
		ElapsedMillis: r.Elapsed.Milliseconds(),
	}
}
