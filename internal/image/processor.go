package image

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

// Fade returns img with its alpha multiplied by alpha. The result always
// starts at the origin.
func Fade(img image.Image, alpha float64) image.Image {
	if alpha >= 1 {
		return origin(img)
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if alpha <= 0 {
		return out
	}
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))})
	draw.DrawMask(out, out.Bounds(), img, b.Min, mask, image.Point{}, draw.Src)
	return out
}

// Downsample shrinks img with Lanczos3 when it is more than twice the target
// pixel size on either axis. Smaller sources are returned unchanged and are
// left to the bilinear transform of the draw call.
func Downsample(img image.Image, targetW, targetH float64) image.Image {
	b := img.Bounds()
	w, h := uint(math.Ceil(targetW)), uint(math.Ceil(targetH))
	if w == 0 || h == 0 {
		return img
	}
	if b.Dx() <= 2*int(w) && b.Dy() <= 2*int(h) {
		return img
	}
	return resize.Resize(w, h, img, resize.Lanczos3)
}

// origin copies img so that its bounds start at (0, 0) when they don't.
func origin(img image.Image) image.Image {
	b := img.Bounds()
	if b.Min == (image.Point{}) {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
