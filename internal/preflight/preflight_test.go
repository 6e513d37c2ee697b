package preflight

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"snaplapse/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail for missing dir, got %#v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := CheckFreeSpace("space", dir, 1); !r.Passed || !strings.Contains(r.Detail, "free on") {
		t.Fatalf("expected pass with 1 byte minimum, got %#v", r)
	}
	if r := CheckFreeSpace("space", dir, ^uint64(0)); r.Passed || !strings.Contains(r.Detail, "below") {
		t.Fatalf("expected failure with impossible minimum, got %#v", r)
	}
	if r := CheckFreeSpace("space", filepath.Join(dir, "missing"), 1); r.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestRunAllReportsMissingDirectoriesAndFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Timelapse.FFmpegBinary = "clearly-not-present-ffmpeg"
	if err := os.MkdirAll(cfg.Paths.RootDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	failed := map[string]bool{}
	for _, r := range Failed(results) {
		failed[r.Name] = true
	}
	for _, name := range []string{"Screenshot directory", "Timelapse directory", "State directory", "FFmpeg", "FFmpeg mpeg4 encoder"} {
		if !failed[name] {
			t.Fatalf("expected %q to fail, results: %#v", name, results)
		}
	}
}

func TestRunAllPassesWithDirectoriesAndStub(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript("#!/bin/sh\necho ' V....D mpeg4  MPEG-4 part 2'\n"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, r := range RunAll(context.Background(), cfg) {
		if r.Name == "Free space" {
			continue
		}
		if !r.Passed {
			t.Fatalf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}
