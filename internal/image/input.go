package image

import (
	"context"
	"image"
)

// Source is a loadable image reference: either a URL-like string or the raw
// bytes of an upload.
type Source struct {
	URL  string
	Data []byte
}

func (s Source) Empty() bool {
	return s.URL == "" && len(s.Data) == 0
}

func (s Source) String() string {
	if len(s.Data) > 0 {
		return "<upload>"
	}
	return s.URL
}

// Loader fetches and decodes image sources.
type Loader interface {
	Load(ctx context.Context, src Source) (image.Image, error)
}

// FieldValue is what the user supplied for one form field: text content, a
// selected asset id, a data: URI, or upload bytes.
type FieldValue struct {
	Text  string
	Image []byte
}

func Text(s string) FieldValue { return FieldValue{Text: s} }
func Upload(b []byte) FieldValue { return FieldValue{Image: b} }

type FormData map[string]FieldValue

// RenderInput is everything a render needs besides the template. It is read
// only during a render.
type RenderInput struct {
	FormData FormData
	// AssetMap resolves selected asset ids to image URLs.
	AssetMap map[string]string
	// Scale multiplies the native size; zero means 1.
	Scale float64
	// WatermarkURL overrides the template's legacy overlay.
	WatermarkURL string
	// HideWatermark skips Watermark regions and the legacy overlay.
	HideWatermark bool
}

func (in RenderInput) scale() float64 {
	if in.Scale == 0 {
		return 1
	}
	return in.Scale
}
