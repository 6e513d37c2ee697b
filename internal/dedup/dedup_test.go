package dedup_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math/bits"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"snaplapse/internal/config"
	"snaplapse/internal/dedup"
	"snaplapse/internal/logging"
	"snaplapse/internal/storage"
)

func patterned(seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x*4) + seed, G: uint8(y * 5), B: seed, A: 255})
		}
	}
	return img
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newDeduplicator(t *testing.T, opts ...dedup.Option) (*dedup.Deduplicator, *storage.Store) {
	t.Helper()
	root := t.TempDir()
	store := storage.New(filepath.Join(root, "screenshots"), filepath.Join(root, "timelapses"), 20)
	cmp := dedup.FingerprintComparator{Quality: 30}
	opts = append([]dedup.Option{dedup.WithClock(steppingClock())}, opts...)
	return dedup.New(cmp, store, logging.NewNop(), opts...), store
}

func TestConsiderAcceptsThenSkipsSameFrame(t *testing.T) {
	d, store := newDeduplicator(t)
	frame := patterned(1)

	first, err := d.Consider(context.Background(), frame)
	if err != nil {
		t.Fatalf("first Consider: %v", err)
	}
	if first.Outcome != dedup.OutcomeAccepted || first.Path == "" {
		t.Fatalf("first decision = %+v", first)
	}
	if _, err := os.Stat(first.Path); err != nil {
		t.Fatalf("accepted frame not on disk: %v", err)
	}

	second, err := d.Consider(context.Background(), frame)
	if err != nil {
		t.Fatalf("second Consider: %v", err)
	}
	if second.Outcome != dedup.OutcomeSkipped || second.Path != "" {
		t.Fatalf("second decision = %+v", second)
	}

	frames, err := store.Frames(storage.DateKey(first.At))
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected one stored frame, got %v", frames)
	}
}

func TestOnlyConsecutiveDuplicatesSuppressed(t *testing.T) {
	d, _ := newDeduplicator(t)
	a, b := patterned(1), patterned(90)

	want := []dedup.Outcome{dedup.OutcomeAccepted, dedup.OutcomeAccepted, dedup.OutcomeAccepted, dedup.OutcomeSkipped}
	for i, frame := range []image.Image{a, b, a, a} {
		dec, err := d.Consider(context.Background(), frame)
		if err != nil {
			t.Fatalf("Consider %d: %v", i, err)
		}
		if dec.Outcome != want[i] {
			t.Fatalf("decision %d = %s, want %s", i, dec.Outcome, want[i])
		}
	}
	stats := d.Stats()
	if stats.Accepted != 3 || stats.Skipped != 1 || stats.Strategy != config.StrategyFingerprint {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestByteIdenticalReencodingIsSkipped(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, patterned(7), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decode := func() image.Image {
		img, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return img
	}

	d, store := newDeduplicator(t)
	first, err := d.Consider(context.Background(), decode())
	if err != nil || first.Outcome != dedup.OutcomeAccepted {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := d.Consider(context.Background(), decode())
	if err != nil || second.Outcome != dedup.OutcomeSkipped {
		t.Fatalf("second = %+v, %v", second, err)
	}
	frames, _ := store.Frames(storage.DateKey(first.At))
	if len(frames) != 1 {
		t.Fatalf("expected no new file, got %v", frames)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	cmp := dedup.FingerprintComparator{Quality: 30}
	a, err := cmp.Fingerprint(patterned(3))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := cmp.Fingerprint(patterned(3))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint length = %d, want 16", len(a))
	}
	if !cmp.Same(a, b) {
		t.Fatal("same pixels produced different fingerprints")
	}
	c, _ := cmp.Fingerprint(patterned(200))
	if cmp.Same(a, c) {
		t.Fatal("different frames produced equal fingerprints")
	}
	if cmp.Same(nil, nil) {
		t.Fatal("empty fingerprints must never match")
	}
}

type flakyPersister struct {
	mu    sync.Mutex
	fails int
	calls int
}

func (p *flakyPersister) Persist(image.Image, time.Time) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fails > 0 {
		p.fails--
		return "", errors.New("disk full")
	}
	return "/frames/ok.jpg", nil
}

func TestPersistFailureRollsBackSlot(t *testing.T) {
	persister := &flakyPersister{fails: 1}
	d := dedup.New(dedup.FingerprintComparator{Quality: 30}, persister, logging.NewNop(), dedup.WithClock(steppingClock()))
	frame := patterned(5)

	if _, err := d.Consider(context.Background(), frame); err == nil {
		t.Fatal("expected persist error")
	}
	dec, err := d.Consider(context.Background(), frame)
	if err != nil {
		t.Fatalf("retry Consider: %v", err)
	}
	if dec.Outcome != dedup.OutcomeAccepted {
		t.Fatalf("retry outcome = %s, want accepted", dec.Outcome)
	}
	if persister.calls != 2 {
		t.Fatalf("persist calls = %d, want 2", persister.calls)
	}
}

func TestCollisionKeepsFirstAndRestoresSlot(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls <= 2 {
			return fixed
		}
		return fixed.Add(time.Duration(calls) * time.Second)
	}
	d, _ := newDeduplicator(t, dedup.WithClock(clock))

	first, err := d.Consider(context.Background(), patterned(1))
	if err != nil || first.Outcome != dedup.OutcomeAccepted {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := d.Consider(context.Background(), patterned(120))
	if err != nil {
		t.Fatalf("second Consider: %v", err)
	}
	if second.Outcome != dedup.OutcomeCollision || second.Path != first.Path {
		t.Fatalf("second = %+v, want collision on %s", second, first.Path)
	}
	// The slot still holds the stored frame, so the new screen is retried.
	third, err := d.Consider(context.Background(), patterned(120))
	if err != nil || third.Outcome != dedup.OutcomeAccepted {
		t.Fatalf("third = %+v, %v", third, err)
	}
	if got := d.Stats().Collisions; got != 1 {
		t.Fatalf("collisions = %d", got)
	}
}

func TestConcurrentConsiderSerialized(t *testing.T) {
	d, _ := newDeduplicator(t)
	frame := patterned(9)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[dedup.Outcome]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := d.Consider(context.Background(), frame)
			if err != nil {
				t.Errorf("Consider: %v", err)
				return
			}
			mu.Lock()
			outcomes[dec.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if outcomes[dedup.OutcomeAccepted] != 1 || outcomes[dedup.OutcomeSkipped] != workers-1 {
		t.Fatalf("outcomes = %v", outcomes)
	}
}

func TestConsiderCancelledContext(t *testing.T) {
	d, _ := newDeduplicator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Consider(ctx, patterned(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestResetAcceptsNextFrame(t *testing.T) {
	d, _ := newDeduplicator(t)
	frame := patterned(2)
	if _, err := d.Consider(context.Background(), frame); err != nil {
		t.Fatal(err)
	}
	d.Reset()
	dec, err := d.Consider(context.Background(), frame)
	if err != nil || dec.Outcome != dedup.OutcomeAccepted {
		t.Fatalf("after reset = %+v, %v", dec, err)
	}
}

// blocky returns a 64x48 image of 8x8 blocks with seeded random gray levels,
// so its low-frequency DCT terms are far from the median.
func blocky(seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for by := 0; by < 6; by++ {
		for bx := 0; bx < 8; bx++ {
			v := uint8(rng.IntN(256))
			for y := by * 8; y < by*8+8; y++ {
				for x := bx * 8; x < bx*8+8; x++ {
					img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
				}
			}
		}
	}
	return img
}

func hammingDistance(t *testing.T, a, b dedup.Fingerprint) int {
	t.Helper()
	if len(a) != 8 || len(b) != 8 {
		t.Fatalf("expected 8-byte perceptual fingerprints, got %d and %d", len(a), len(b))
	}
	return bits.OnesCount64(binary.BigEndian.Uint64(a) ^ binary.BigEndian.Uint64(b))
}

func TestPerceptualComparator(t *testing.T) {
	base := blocky(1)
	nudged := blocky(1)
	nudged.SetRGBA(10, 10, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	cmp := dedup.PerceptualComparator{Threshold: 10}
	a, err := cmp.Fingerprint(base)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := cmp.Fingerprint(nudged)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if !cmp.Same(a, a) {
		t.Fatal("identical frames should match")
	}

	split := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				split.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				split.SetRGBA(x, y, color.RGBA{A: 255})
			}
		}
	}
	c, err := cmp.Fingerprint(split)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}

	near := hammingDistance(t, a, b)
	far := hammingDistance(t, a, c)
	if near >= far {
		t.Fatalf("one-pixel change distance %d should be below unrelated-image distance %d", near, far)
	}
	if near <= cmp.Threshold && !cmp.Same(a, b) {
		t.Fatalf("distance %d within threshold %d but Same reported false", near, cmp.Threshold)
	}
	if !(dedup.PerceptualComparator{Threshold: near}).Same(a, b) {
		t.Fatalf("Same should accept distance %d at threshold %d", near, near)
	}
	if (dedup.PerceptualComparator{Threshold: far - 1}).Same(a, c) {
		t.Fatalf("Same should reject distance %d at threshold %d", far, far-1)
	}
}

func TestNewComparator(t *testing.T) {
	cases := []struct {
		strategy string
		want     string
		wantErr  bool
	}{
		{config.StrategyFingerprint, config.StrategyFingerprint, false},
		{config.StrategyPerceptual, config.StrategyPerceptual, false},
		{"histogram", "", true},
	}
	for _, tc := range cases {
		cmp, err := dedup.NewComparator(config.Dedup{Strategy: tc.strategy, FingerprintQuality: 30, PerceptualThreshold: 10})
		if tc.wantErr {
			if err == nil {
				t.Fatalf("strategy %q: expected error", tc.strategy)
			}
			continue
		}
		if err != nil {
			t.Fatalf("strategy %q: %v", tc.strategy, err)
		}
		if cmp.Name() != tc.want {
			t.Fatalf("strategy %q: name %q", tc.strategy, cmp.Name())
		}
	}
}
