package image

import "newscard/internal/card"

// Rect is an axis-aligned rectangle in native template pixels.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) CenterX() float64 { return r.X + r.W/2 }
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Resolve converts a percentage box into native pixels. No clamping: boxes
// hanging off the canvas are drawn as far as they reach.
func Resolve(b card.Box, naturalW, naturalH int) Rect {
	w, h := float64(naturalW), float64(naturalH)
	return Rect{
		X: b.X / 100 * w,
		Y: b.Y / 100 * h,
		W: b.W / 100 * w,
		H: b.H / 100 * h,
	}
}
