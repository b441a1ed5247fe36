package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"newscard/internal/card"
)

// MaxPixels bounds the output raster of a single render.
const MaxPixels = 8192 * 8192

var ErrSurface = errors.New("surface unavailable")

type FontSpec struct {
	Family string
	Weight string
	Size   float64 // native pixels
}

// Surface is the raster target of a render. All coordinates are native
// template pixels; the surface maps them to output pixels.
type Surface interface {
	// Init allocates a width*scale x height*scale raster.
	Init(width, height int, scale float64) error
	Fill(c color.Color)
	// DrawImage paints img stretched over dst, cropped to clip unless clip is empty.
	DrawImage(img image.Image, dst, clip Rect)
	MeasureText(s string, f FontSpec) float64
	// FillText paints s with the top of the line at top and x as the
	// horizontal anchor for align.
	FillText(s string, x, top float64, f FontSpec, c color.Color, align card.Align)
	// WithOpacity multiplies the global alpha for the duration of fn.
	WithOpacity(alpha float64, fn func() error) error
	Image() image.Image
}

type faceKey struct {
	family string
	weight string
	size   float64
}

// Canvas is a Surface drawn with gg. A Canvas belongs to one render at a time.
type Canvas struct {
	fonts FontProvider
	dc    *gg.Context
	scale float64
	alpha float64
	faces map[faceKey]font.Face
}

func NewCanvas(fonts FontProvider) *Canvas {
	return &Canvas{fonts: fonts, alpha: 1, faces: make(map[faceKey]font.Face)}
}

func (c *Canvas) Init(width, height int, scale float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrSurface, width, height)
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return fmt.Errorf("%w: scale %v", ErrSurface, scale)
	}
	pw := int(math.Round(float64(width) * scale))
	ph := int(math.Round(float64(height) * scale))
	if pw < 1 || ph < 1 || pw*ph > MaxPixels {
		return fmt.Errorf("%w: output %dx%d", ErrSurface, pw, ph)
	}

	c.dc = gg.NewContext(pw, ph)
	c.dc.Scale(scale, scale)
	c.scale = scale
	c.alpha = 1
	c.faces = make(map[faceKey]font.Face)
	return nil
}

func (c *Canvas) Fill(col color.Color) {
	c.dc.SetColor(withAlpha(col, c.alpha))
	c.dc.Clear()
}

func (c *Canvas) DrawImage(img image.Image, dst, clip Rect) {
	if img == nil || dst.Empty() || img.Bounds().Empty() {
		return
	}
	src := Fade(Downsample(img, dst.W*c.scale, dst.H*c.scale), c.alpha)
	sb := src.Bounds()

	if !clip.Empty() {
		c.dc.DrawRectangle(clip.X, clip.Y, clip.W, clip.H)
		c.dc.Clip()
		defer c.dc.ResetClip()
	}
	c.dc.Push()
	c.dc.Translate(dst.X, dst.Y)
	c.dc.Scale(dst.W/float64(sb.Dx()), dst.H/float64(sb.Dy()))
	c.dc.DrawImage(src, 0, 0)
	c.dc.Pop()
}

// MeasureText measures at native size so that wrapping does not depend on
// the output scale.
func (c *Canvas) MeasureText(s string, f FontSpec) float64 {
	face := c.face(f, f.Size)
	if face == nil {
		return 0
	}
	return float64(font.MeasureString(face, s)) / 64
}

func (c *Canvas) FillText(s string, x, top float64, f FontSpec, col color.Color, align card.Align) {
	face := c.face(f, f.Size*c.scale)
	if face == nil || s == "" {
		return
	}
	ax := 0.0
	switch align {
	case card.AlignCenter:
		ax = 0.5
	case card.AlignRight:
		ax = 1
	}
	baseline := top*c.scale + float64(face.Metrics().Ascent)/64

	// Glyphs are rasterised at output size rather than scaled as bitmaps.
	c.dc.Push()
	c.dc.Identity()
	c.dc.SetFontFace(face)
	c.dc.SetColor(withAlpha(col, c.alpha))
	c.dc.DrawStringAnchored(s, x*c.scale, baseline, ax, 0)
	c.dc.Pop()
}

func (c *Canvas) WithOpacity(alpha float64, fn func() error) error {
	prev := c.alpha
	c.alpha = prev * math.Max(0, math.Min(1, alpha))
	defer func() { c.alpha = prev }()
	return fn()
}

func (c *Canvas) Image() image.Image {
	if c.dc == nil {
		return nil
	}
	return c.dc.Image()
}

func (c *Canvas) face(f FontSpec, size float64) font.Face {
	if size <= 0 {
		return nil
	}
	key := faceKey{family: f.Family, weight: f.Weight, size: size}
	if face, ok := c.faces[key]; ok {
		return face
	}
	face, err := c.fonts.Face(f.Family, f.Weight, size)
	if err != nil {
		// Fall back to the provider's default family.
		if face, err = c.fonts.Face("", "", size); err != nil {
			return nil
		}
	}
	c.faces[key] = face
	return face
}
