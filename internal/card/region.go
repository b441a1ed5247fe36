package card

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindText      Kind = "TEXT"
	KindImage     Kind = "IMAGE" // uploaded by the user for each card
	KindLogo      Kind = "LOGO"
	KindAds       Kind = "ADS"
	KindWatermark Kind = "WATERMARK"
)

// IsImage reports whether regions of this kind are painted from an image source.
func (k Kind) IsImage() bool {
	switch k {
	case KindImage, KindLogo, KindAds, KindWatermark:
		return true
	}
	return false
}

// Selectable reports whether the image comes from the channel asset set.
func (k Kind) Selectable() bool {
	return k == KindLogo || k == KindAds
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if k == KindText || k.IsImage() {
		return k, nil
	}
	return "", fmt.Errorf("unknown region kind %q", s)
}

type FitMode string

const (
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
	FitFill    FitMode = "fill" // editor value, rendered as cover
)

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

type VerticalAlign string

const (
	VAlignTop    VerticalAlign = "top"
	VAlignMiddle VerticalAlign = "middle"
	VAlignBottom VerticalAlign = "bottom"
)

const (
	DefaultFontFamily = "Hind Siliguri"
	DefaultFontSize   = 24.0
	DefaultFontWeight = "normal"
	DefaultColor      = "#000000"
	DefaultLineHeight = 1.2
)

// Box is a region's geometry in percent (0-100) of the template's native size.
// Values outside that range are kept as given.
type Box struct {
	X, Y, W, H float64
}

// TextStyle holds the styling of a Text region. FontSize is in logical pixels
// at a 1000px wide design basis.
type TextStyle struct {
	FontFamily    string
	FontSize      float64
	FontWeight    string
	Color         string
	Align         Align
	VerticalAlign VerticalAlign
	LineHeight    float64
}

func (s TextStyle) withDefaults() TextStyle {
	if s.FontFamily == "" {
		s.FontFamily = DefaultFontFamily
	}
	if s.FontSize <= 0 {
		s.FontSize = DefaultFontSize
	}
	if s.FontWeight == "" {
		s.FontWeight = DefaultFontWeight
	}
	if s.Color == "" {
		s.Color = DefaultColor
	}
	switch s.Align {
	case AlignCenter, AlignRight:
	default:
		s.Align = AlignLeft
	}
	switch s.VerticalAlign {
	case VAlignMiddle, VAlignBottom:
	default:
		s.VerticalAlign = VAlignTop
	}
	if s.LineHeight <= 0 {
		s.LineHeight = DefaultLineHeight
	}
	return s
}

type ImageStyle struct {
	Fit FitMode
}

// Region is one content slot of a template. The kind-specific style is only
// reachable through Text or Image, and only the constructors can set it, so a
// Text region always carries a TextStyle and an image-family region a fit mode.
type Region struct {
	ID        string
	Key       string
	Kind      Kind
	Box       Box
	Opacity   float64
	StaticURL string
	Locked    bool

	text  *TextStyle
	image *ImageStyle
}

func NewTextRegion(id, key string, box Box, style TextStyle) Region {
	s := style.withDefaults()
	return Region{
		ID:      id,
		Key:     key,
		Kind:    KindText,
		Box:     box,
		Opacity: 1,
		text:    &s,
	}
}

func NewImageRegion(id, key string, kind Kind, box Box, fit FitMode) (Region, error) {
	if !kind.IsImage() {
		return Region{}, fmt.Errorf("region %q: kind %s is not an image kind", id, kind)
	}
	switch fit {
	case FitContain, FitFill:
	default:
		fit = FitCover
	}
	return Region{
		ID:      id,
		Key:     key,
		Kind:    kind,
		Box:     box,
		Opacity: 1,
		image:   &ImageStyle{Fit: fit},
	}, nil
}

func (r Region) Text() (TextStyle, bool) {
	if r.text == nil {
		return TextStyle{}, false
	}
	return *r.text, true
}

func (r Region) Image() (ImageStyle, bool) {
	if r.image == nil {
		return ImageStyle{}, false
	}
	return *r.image, true
}

// WithOpacity returns a copy with opacity clamped to [0, 1].
func (r Region) WithOpacity(o float64) Region {
	r.Opacity = clamp01(o)
	return r
}

func (r Region) WithStaticURL(url string) Region {
	r.StaticURL = url
	return r
}

// Pinned reports whether a selectable region has its image fixed by the author.
func (r Region) Pinned() bool {
	return r.Kind.Selectable() && r.StaticURL != ""
}

func (r Region) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("region without id")
	}
	if r.Key == "" {
		return fmt.Errorf("region %q: empty key", r.ID)
	}
	switch {
	case r.Kind == KindText:
		if r.text == nil {
			return fmt.Errorf("region %q: text region without style", r.ID)
		}
	case r.Kind.IsImage():
		if r.image == nil {
			return fmt.Errorf("region %q: image region without fit mode", r.ID)
		}
	default:
		return fmt.Errorf("region %q: unknown kind %q", r.ID, r.Kind)
	}
	if r.Opacity < 0 || r.Opacity > 1 {
		return fmt.Errorf("region %q: opacity %v out of range", r.ID, r.Opacity)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
