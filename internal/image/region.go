package image

import (
	"fmt"
	"image"
	"strings"

	"newscard/internal/card"
)

// ImageSource picks what an image-family region paints. The result is empty
// when there is nothing to draw.
func ImageSource(r card.Region, in RenderInput) Source {
	v := in.FormData[r.Key]
	switch r.Kind {
	case card.KindImage:
		if len(v.Image) > 0 {
			return Source{Data: v.Image}
		}
		// User text never names a path or host, only an inline image.
		if ref := strings.TrimSpace(v.Text); strings.HasPrefix(ref, "data:") {
			return Source{URL: ref}
		}
		return Source{}
	case card.KindLogo, card.KindAds:
		if url := in.AssetMap[v.Text]; v.Text != "" && url != "" {
			return Source{URL: url}
		}
		return Source{URL: r.StaticURL}
	case card.KindWatermark:
		return Source{URL: r.StaticURL}
	}
	return Source{}
}

// RegionRenderer paints one region at a time onto a surface in native
// template coordinates.
type RegionRenderer struct {
	surface  Surface
	naturalW int
	naturalH int
}

func NewRegionRenderer(s Surface, naturalW, naturalH int) *RegionRenderer {
	return &RegionRenderer{surface: s, naturalW: naturalW, naturalH: naturalH}
}

// Draw paints r with its opacity applied. img is the already loaded source of
// an image-family region and is ignored for text.
func (rr *RegionRenderer) Draw(r card.Region, in RenderInput, img image.Image) error {
	if r.Kind == card.KindWatermark && in.HideWatermark {
		return nil
	}
	box := Resolve(r.Box, rr.naturalW, rr.naturalH)

	return rr.surface.WithOpacity(r.Opacity, func() error {
		switch {
		case r.Kind == card.KindText:
			return rr.drawText(r, box, in.FormData[r.Key].Text)
		case r.Kind.IsImage():
			return rr.drawImage(r, box, img)
		}
		return fmt.Errorf("region %q: unknown kind %q", r.ID, r.Kind)
	})
}

func (rr *RegionRenderer) drawText(r card.Region, box Rect, value string) error {
	style, ok := r.Text()
	if !ok {
		return fmt.Errorf("region %q: no text style", r.ID)
	}
	spec := FontSpec{
		Family: style.FontFamily,
		Weight: style.FontWeight,
		Size:   ScaleFontSize(style.FontSize, rr.naturalW),
	}
	block := LayoutText(value, TextLayout{
		Box:           box,
		FontSize:      spec.Size,
		LineHeight:    style.LineHeight,
		Align:         style.Align,
		VerticalAlign: style.VerticalAlign,
	}, func(s string) float64 {
		return rr.surface.MeasureText(s, spec)
	})

	col := ParseHexColor(style.Color)
	for _, l := range block.Lines {
		rr.surface.FillText(l.Text, l.X, l.Y, spec, col, block.Align)
	}
	return nil
}

func (rr *RegionRenderer) drawImage(r card.Region, box Rect, img image.Image) error {
	if img == nil {
		return nil
	}
	style, ok := r.Image()
	if !ok {
		return fmt.Errorf("region %q: no fit mode", r.ID)
	}
	b := img.Bounds()
	p := FitImage(float64(b.Dx()), float64(b.Dy()), box, style.Fit)
	rr.surface.DrawImage(img, p.Draw, p.Clip)
	return nil
}
