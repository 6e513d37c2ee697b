package daemonctl

import (
	"context"
	"fmt"
	"os"
	"time"

	"snaplapse/internal/config"
	"snaplapse/internal/deps"
	"snaplapse/internal/ipc"
	"snaplapse/internal/manifest"
	"snaplapse/internal/preflight"
	"snaplapse/internal/storage"
)

// StatusLine is one labelled row of status output.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// Snapshot is everything `snaplapse status` renders.
type Snapshot struct {
	Status            ipc.StatusResponse
	SystemChecks      []StatusLine
	DependencySummary DependencySummary
}

// BuildStatusSnapshot collects daemon status, falling back to on-disk state
// when the daemon is not reachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not available")
	}
	snap := &Snapshot{}

	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snap.Status = *resp
		}
		_ = client.Close()
	}

	if !snap.Status.Running {
		store := storage.FromConfig(cfg)
		snap.Status.ScreenshotsDir = store.ScreenshotsDir()
		snap.Status.TimelapsesDir = store.TimelapsesDir()
		snap.Status.LockPath = cfg.LockPath()
		snap.Status.ManifestPath = cfg.ManifestPath()
		snap.Status.Today = storage.DateKey(time.Now())
		if frames, err := store.Frames(snap.Status.Today); err == nil {
			snap.Status.TodayFrames = len(frames)
		}
	}
	if len(snap.Status.Dependencies) == 0 {
		snap.Status.Dependencies = ipc.FromDependencies(deps.CheckBinaries(deps.Requirements(cfg)))
	}

	snap.SystemChecks = BuildSystemChecks(ctx, cfg, snap.Status.Running)
	snap.DependencySummary = BuildDependencySummary(snap.Status.Dependencies)
	return snap, nil
}

// BuildSystemChecks resolves status lines combining runtime state and preflight.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, daemonRunning bool) []StatusLine {
	lines := make([]StatusLine, 0, 8)
	if daemonRunning {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "ok", Detail: "Running"})
	} else {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `snaplapse start`)"})
	}
	for _, result := range preflight.RunAll(ctx, cfg) {
		severity := "ok"
		if !result.Passed {
			severity = "error"
			if result.Name == "Free space" {
				severity = "warn"
			}
		}
		lines = append(lines, StatusLine{Label: result.Name, Severity: severity, Detail: result.Detail})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(statuses []ipc.DependencyStatus) DependencySummary {
	if len(statuses) == 0 {
		return DependencySummary{Severity: "info", Detail: "No dependency checks configured"}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(statuses) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(statuses), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(statuses))
	}

	return DependencySummary{
		Total:           len(statuses),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}

// ListBuckets asks the daemon for the bucket listing, or reads disk and the
// manifest directly when it is offline.
func ListBuckets(ctx context.Context, cfg *config.Config) ([]ipc.Bucket, bool, error) {
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		defer client.Close()
		resp, err := client.List()
		if err != nil {
			return nil, true, err
		}
		return resp.Buckets, true, nil
	}

	summaries, err := storage.FromConfig(cfg).Summaries()
	if err != nil {
		return nil, false, err
	}
	records := map[string]manifest.Record{}
	if _, statErr := os.Stat(cfg.ManifestPath()); statErr == nil {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if index, openErr := manifest.Open(queryCtx, cfg.ManifestPath()); openErr == nil {
			list, _ := index.List(queryCtx)
			_ = index.Close()
			for _, rec := range list {
				records[rec.DateKey] = rec
			}
		}
	}

	out := make([]ipc.Bucket, 0, len(summaries))
	for _, s := range summaries {
		b := ipc.Bucket{
			Date:          s.DateKey,
			Frames:        s.Frames,
			Artifact:      s.Artifact,
			ArtifactPath:  s.ArtifactPath,
			ArtifactBytes: s.ArtifactBytes,
		}
		if rec, ok := records[s.DateKey]; ok && s.Artifact {
			at := rec.CreatedAt
			b.AssembledAt = &at
			b.SkippedFrames = rec.Skipped
		}
		out = append(out, b)
	}
	return out, false, nil
}
