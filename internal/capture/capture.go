// Package capture grabs desktop frames for the capture pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	displays "github.com/kbinani/screenshot"
	primary "github.com/vova616/screenshot"
)

// ErrNoDisplay reports that the configured display is not available.
var ErrNoDisplay = errors.New("no such display")

// Source produces one frame per call.
type Source interface {
	Capture(ctx context.Context) (*image.RGBA, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*image.RGBA, error)

func (f SourceFunc) Capture(ctx context.Context) (*image.RGBA, error) { return f(ctx) }

// ScreenSource captures the primary screen, or one display by index.
type ScreenSource struct {
	display int

	grabPrimary func() (*image.RGBA, error)
	grabDisplay func(int) (*image.RGBA, error)
	numDisplays func() int
}

// NewScreenSource returns a source for display. A negative index selects the
// primary screen.
func NewScreenSource(display int) *ScreenSource {
	return &ScreenSource{
		display:     display,
		grabPrimary: primary.CaptureScreen,
		grabDisplay: displays.CaptureDisplay,
		numDisplays: displays.NumActiveDisplays,
	}
}

// Capture grabs the configured screen with alpha forced opaque.
func (s *ScreenSource) Capture(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		img *image.RGBA
		err error
	)
	if s.display < 0 {
		img, err = s.grabPrimary()
	} else {
		if n := s.numDisplays(); s.display >= n {
			return nil, fmt.Errorf("display %d of %d: %w", s.display, n, ErrNoDisplay)
		}
		img, err = s.grabDisplay(s.display)
	}
	if err != nil {
		return nil, fmt.Errorf("grab screen: %w", err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("grab screen: empty image: %w", ErrNoDisplay)
	}
	ForceOpaque(img)
	return img, nil
}

// ForceOpaque sets every alpha sample of img to fully opaque. Screen grabbers
// on some platforms leave the alpha channel zeroed.
func ForceOpaque(img *image.RGBA) {
	if img == nil {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X-1, y)+4]
		for i := 3; i < len(row); i += 4 {
			row[i] = 0xff
		}
	}
}
