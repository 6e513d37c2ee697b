package dedup

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/corona10/goimagehash"

	"snaplapse/internal/config"
)

// Fingerprint is an opaque comparator-specific digest of a frame.
type Fingerprint []byte

// Comparator computes fingerprints and decides whether two describe the same
// screen.
type Comparator interface {
	Name() string
	Fingerprint(frame image.Image) (Fingerprint, error)
	Same(a, b Fingerprint) bool
}

// NewComparator returns the comparator selected by cfg.Strategy.
func NewComparator(cfg config.Dedup) (Comparator, error) {
	switch cfg.Strategy {
	case config.StrategyFingerprint, "":
		return FingerprintComparator{Quality: cfg.FingerprintQuality}, nil
	case config.StrategyPerceptual:
		return PerceptualComparator{Threshold: cfg.PerceptualThreshold}, nil
	default:
		return nil, fmt.Errorf("dedup strategy %q: unsupported", cfg.Strategy)
	}
}

// FingerprintComparator hashes the JPEG encoding of a frame with MD5. Two
// frames are the same only when their encodings are byte-identical.
type FingerprintComparator struct {
	Quality int
}

func (FingerprintComparator) Name() string { return config.StrategyFingerprint }

func (c FingerprintComparator) Fingerprint(frame image.Image) (Fingerprint, error) {
	if frame == nil {
		return nil, errors.New("fingerprint: nil frame")
	}
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = 30
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("fingerprint encode: %w", err)
	}
	sum := md5.Sum(buf.Bytes())
	return Fingerprint(sum[:]), nil
}

func (FingerprintComparator) Same(a, b Fingerprint) bool {
	return len(a) > 0 && bytes.Equal(a, b)
}

// PerceptualComparator uses a 64-bit perceptual hash; frames within
// Threshold differing bits count as the same screen.
type PerceptualComparator struct {
	Threshold int
}

func (PerceptualComparator) Name() string { return config.StrategyPerceptual }

func (PerceptualComparator) Fingerprint(frame image.Image) (Fingerprint, error) {
	if frame == nil {
		return nil, errors.New("fingerprint: nil frame")
	}
	hash, err := goimagehash.PerceptionHash(frame)
	if err != nil {
		return nil, fmt.Errorf("perceptual hash: %w", err)
	}
	fp := make(Fingerprint, 8)
	binary.BigEndian.PutUint64(fp, hash.GetHash())
	return fp, nil
}

func (c PerceptualComparator) Same(a, b Fingerprint) bool {
	if len(a) != 8 || len(b) != 8 {
		return false
	}
	left := goimagehash.NewImageHash(binary.BigEndian.Uint64(a), goimagehash.PHash)
	right := goimagehash.NewImageHash(binary.BigEndian.Uint64(b), goimagehash.PHash)
	dist, err := left.Distance(right)
	if err != nil {
		return false
	}
	return dist <= c.Threshold
}
