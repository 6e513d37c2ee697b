package timelapse

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"snaplapse/internal/config"
)

// fitFrame returns img as a width×height RGBA frame according to policy.
// The second result is false when the skip policy drops the frame.
func fitFrame(img image.Image, width, height int, policy string) (*image.RGBA, bool) {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return toRGBA(img), true
	}
	switch policy {
	case config.MismatchResize:
		return toRGBA(imaging.Resize(img, width, height, imaging.Lanczos)), true
	case config.MismatchLetterbox:
		fitted := imaging.Fit(img, width, height, imaging.Lanczos)
		canvas := imaging.New(width, height, color.Black)
		return toRGBA(imaging.PasteCenter(canvas, fitted)), true
	default:
		return nil, false
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
