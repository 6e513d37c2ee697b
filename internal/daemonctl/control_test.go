package daemonctl

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"snaplapse/internal/ipc"
	"snaplapse/internal/manifest"
	"snaplapse/internal/storage"
	"snaplapse/internal/testsupport"
)

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg, 100*time.Millisecond); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestProcessInfoWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	alive, pid, err := ProcessInfo(cfg.SocketPath())
	if err != nil || alive || pid != 0 {
		t.Fatalf("ProcessInfo = %v, %d, %v; want not alive", alive, pid, err)
	}
}

func TestForceKillProcessRefusesSelf(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "snaplapse.pid")
	testsupport.WriteFile(t, pidPath, []byte("0\n"))
	if _, err := ForceKillProcess(pidPath, "", os.Getpid()); err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal to kill self, got %v", err)
	}
	if _, err := ForceKillProcess(filepath.Join(t.TempDir(), "missing.pid"), "", 0); err == nil {
		t.Fatal("expected error without any pid")
	}
}

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		deps     []ipc.DependencyStatus
		severity string
		detail   string
	}{
		{"none", nil, "info", "No dependency checks configured"},
		{"all ok", []ipc.DependencyStatus{{Available: true}}, "ok", "1/1 available"},
		{"optional missing", []ipc.DependencyStatus{{Available: true}, {Optional: true}}, "warn", "1/2 available (missing: 0 required, 1 optional)"},
		{"required missing", []ipc.DependencyStatus{{}, {Optional: true}}, "error", "0/2 available (missing: 1 required, 1 optional)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildDependencySummary(tc.deps)
			if got.Severity != tc.severity || got.Detail != tc.detail {
				t.Fatalf("got %+v, want severity %q detail %q", got, tc.severity, tc.detail)
			}
		})
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Timelapse.FFmpegBinary = "definitely-missing-ffmpeg"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	today := storage.DateKey(time.Now())
	store := storage.FromConfig(cfg)
	testsupport.WriteJPEG(t, filepath.Join(store.BucketDir(today), "screenshot_080000.jpg"), 8, 8, color.RGBA{A: 255})

	snap, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Status.Running {
		t.Fatal("expected offline snapshot")
	}
	if snap.Status.TodayFrames != 1 || snap.Status.Today != today {
		t.Fatalf("unexpected today info %+v", snap.Status)
	}
	if snap.DependencySummary.Severity != "error" {
		t.Fatalf("expected missing ffmpeg to be an error, got %+v", snap.DependencySummary)
	}
	if len(snap.SystemChecks) == 0 || snap.SystemChecks[0].Label != "Daemon" || snap.SystemChecks[0].Severity != "warn" {
		t.Fatalf("unexpected system checks %+v", snap.SystemChecks)
	}
}

func TestListBucketsOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := storage.FromConfig(cfg)
	testsupport.WriteJPEG(t, filepath.Join(store.BucketDir("2024-02-01"), "screenshot_080000.jpg"), 8, 8, color.RGBA{A: 255})
	testsupport.WriteJPEG(t, filepath.Join(store.BucketDir("2024-02-02"), "screenshot_080000.jpg"), 8, 8, color.RGBA{A: 255})
	testsupport.WriteFile(t, store.ArtifactPath("2024-02-01"), []byte("mp4"))

	index := testsupport.MustOpenManifest(t, cfg)
	created := time.Date(2024, 2, 2, 1, 0, 0, 0, time.UTC)
	if err := index.Upsert(context.Background(), manifest.Record{
		DateKey: "2024-02-01", Path: store.ArtifactPath("2024-02-01"), Frames: 1, Skipped: 2, CreatedAt: created,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	buckets, viaDaemon, err := ListBuckets(context.Background(), cfg)
	if err != nil {
		t.Fatalf("ListBuckets: %v", err)
	}
	if viaDaemon {
		t.Fatal("expected offline listing")
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", buckets)
	}
	first := buckets[0]
	if !first.Artifact || first.AssembledAt == nil || !first.AssembledAt.Equal(created) || first.SkippedFrames != 2 {
		t.Fatalf("unexpected first bucket %+v", first)
	}
	if buckets[1].Artifact || buckets[1].AssembledAt != nil {
		t.Fatalf("unexpected second bucket %+v", buckets[1])
	}
}
