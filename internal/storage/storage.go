package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"snaplapse/internal/config"
	"snaplapse/internal/fileutil"
)

const (
	// DateLayout formats bucket keys.
	DateLayout = "2006-01-02"

	screenshotPrefix = "screenshot_"
	screenshotExt    = ".jpg"
	screenshotGlob   = screenshotPrefix + "*" + screenshotExt
	artifactPrefix   = "timelapse_"
	artifactExt      = ".mp4"
)

// ErrFrameExists reports a second capture within the same wall-clock second.
// The first file is kept.
var ErrFrameExists = errors.New("screenshot already exists for this second")

// Store resolves bucket and artifact paths and persists accepted frames.
type Store struct {
	screenshotsDir string
	timelapsesDir  string
	quality        int
}

// New returns a store rooted at the given directories. Frames are encoded as
// JPEG at quality.
func New(screenshotsDir, timelapsesDir string, quality int) *Store {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Store{screenshotsDir: screenshotsDir, timelapsesDir: timelapsesDir, quality: quality}
}

// FromConfig builds a store from the configured layout.
func FromConfig(cfg *config.Config) *Store {
	return New(cfg.ScreenshotsDir(), cfg.TimelapsesDir(), cfg.Capture.StorageQuality)
}

func (s *Store) ScreenshotsDir() string { return s.screenshotsDir }

func (s *Store) TimelapsesDir() string { return s.timelapsesDir }

// DateKey returns the bucket key for t in local time.
func DateKey(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// ValidDateKey reports whether key is a well-formed YYYY-MM-DD date.
func ValidDateKey(key string) bool {
	parsed, err := time.ParseInLocation(DateLayout, key, time.Local)
	return err == nil && parsed.Format(DateLayout) == key
}

// ScreenshotName returns the filename for a capture taken at t.
func ScreenshotName(t time.Time) string {
	return screenshotPrefix + t.Local().Format("150405") + screenshotExt
}

// BucketDir returns the directory holding the screenshots of dateKey.
func (s *Store) BucketDir(dateKey string) string {
	return filepath.Join(s.screenshotsDir, dateKey)
}

// ArtifactPath returns where the timelapse of dateKey is written.
func (s *Store) ArtifactPath(dateKey string) string {
	return filepath.Join(s.timelapsesDir, artifactPrefix+dateKey+artifactExt)
}

// HasArtifact reports whether the timelapse of dateKey already exists.
func (s *Store) HasArtifact(dateKey string) (bool, error) {
	return fileutil.Exists(s.ArtifactPath(dateKey))
}

// Frames lists the screenshots of dateKey as absolute paths in filename
// order. A missing bucket yields an empty list.
func (s *Store) Frames(dateKey string) ([]string, error) {
	dir := s.BucketDir(dateKey)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list bucket %s: %w", dateKey, err)
	}
	var frames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(screenshotGlob, entry.Name()); !ok {
			continue
		}
		frames = append(frames, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(frames)
	return frames, nil
}

// Buckets lists the date keys of every bucket directory under the screenshot
// root, oldest first. Directories whose names are not dates are ignored.
func (s *Store) Buckets() ([]string, error) {
	entries, err := os.ReadDir(s.screenshotsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list screenshot root: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() && ValidDateKey(entry.Name()) {
			keys = append(keys, entry.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Persist encodes frame as JPEG and writes it into the bucket of at. The
// file is created exclusively; a collision returns ErrFrameExists along with
// the path already on disk.
func (s *Store) Persist(frame image.Image, at time.Time) (string, error) {
	if frame == nil {
		return "", errors.New("persist: nil frame")
	}
	dir := s.BucketDir(DateKey(at))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure bucket directory: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: s.quality}); err != nil {
		return "", fmt.Errorf("encode screenshot: %w", err)
	}

	path := filepath.Join(dir, ScreenshotName(at))
	if err := fileutil.WriteExclusive(path, buf.Bytes(), 0o644); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return path, ErrFrameExists
		}
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// BucketSummary describes one bucket for listings.
type BucketSummary struct {
	DateKey       string
	Frames        int
	Artifact      bool
	ArtifactPath  string
	ArtifactBytes int64
}

// Summaries describes every bucket, oldest first. Artifacts whose bucket
// directory was deleted are still reported.
func (s *Store) Summaries() ([]BucketSummary, error) {
	keys, err := s.Buckets()
	if err != nil {
		return nil, err
	}
	orphans, err := s.artifactKeys()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		seen[key] = struct{}{}
	}
	for _, key := range orphans {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	summaries := make([]BucketSummary, 0, len(keys))
	for _, key := range keys {
		frames, err := s.Frames(key)
		if err != nil {
			return nil, err
		}
		summary := BucketSummary{DateKey: key, Frames: len(frames), ArtifactPath: s.ArtifactPath(key)}
		if info, err := os.Stat(summary.ArtifactPath); err == nil && info.Mode().IsRegular() {
			summary.Artifact = true
			summary.ArtifactBytes = info.Size()
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Store) artifactKeys() ([]string, error) {
	entries, err := os.ReadDir(s.timelapsesDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list timelapse directory: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactExt)
		if ValidDateKey(key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
