package image

import (
	"math"

	"newscard/internal/card"
)

// Placement is where a source image lands: Draw may overflow the box for
// cover, Clip is always the destination box.
type Placement struct {
	Draw Rect
	Clip Rect
}

// FitImage scales an imgW x imgH source into box. Every mode other than
// contain, fill included, covers the box. Overflow is centred on both axes.
func FitImage(imgW, imgH float64, box Rect, mode card.FitMode) Placement {
	p := Placement{Clip: box}
	if imgW <= 0 || imgH <= 0 || box.Empty() {
		return p
	}

	sx, sy := box.W/imgW, box.H/imgH
	scale := math.Max(sx, sy)
	if mode == card.FitContain {
		scale = math.Min(sx, sy)
	}

	w, h := imgW*scale, imgH*scale
	p.Draw = Rect{
		X: box.X + (box.W-w)/2,
		Y: box.Y + (box.H-h)/2,
		W: w,
		H: h,
	}
	return p
}
