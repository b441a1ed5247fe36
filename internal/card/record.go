package card

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// regionRecord is the flat wire shape produced by the template editor.
type regionRecord struct {
	ID            string   `json:"id" yaml:"id"`
	Key           string   `json:"key" yaml:"key"`
	Type          string   `json:"type" yaml:"type"`
	X             float64  `json:"x" yaml:"x"`
	Y             float64  `json:"y" yaml:"y"`
	W             float64  `json:"w" yaml:"w"`
	H             float64  `json:"h" yaml:"h"`
	Locked        bool     `json:"locked,omitempty" yaml:"locked,omitempty"`
	FontFamily    string   `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty"`
	FontSize      float64  `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	FontWeight    string   `json:"fontWeight,omitempty" yaml:"fontWeight,omitempty"`
	Color         string   `json:"color,omitempty" yaml:"color,omitempty"`
	Align         string   `json:"align,omitempty" yaml:"align,omitempty"`
	VerticalAlign string   `json:"verticalAlign,omitempty" yaml:"verticalAlign,omitempty"`
	LineHeight    float64  `json:"lineHeight,omitempty" yaml:"lineHeight,omitempty"`
	FitMode       string   `json:"fitMode,omitempty" yaml:"fitMode,omitempty"`
	Opacity       *float64 `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	StaticURL     string   `json:"staticUrl,omitempty" yaml:"staticUrl,omitempty"`
}

func (rec regionRecord) region() (Region, error) {
	kind, err := ParseKind(rec.Type)
	if err != nil {
		return Region{}, fmt.Errorf("region %q: %w", rec.ID, err)
	}
	box := Box{X: rec.X, Y: rec.Y, W: rec.W, H: rec.H}

	var r Region
	if kind == KindText {
		r = NewTextRegion(rec.ID, rec.Key, box, TextStyle{
			FontFamily:    rec.FontFamily,
			FontSize:      rec.FontSize,
			FontWeight:    rec.FontWeight,
			Color:         rec.Color,
			Align:         Align(rec.Align),
			VerticalAlign: VerticalAlign(rec.VerticalAlign),
			LineHeight:    rec.LineHeight,
		})
	} else {
		r, err = NewImageRegion(rec.ID, rec.Key, kind, box, FitMode(rec.FitMode))
		if err != nil {
			return Region{}, err
		}
	}
	if rec.Opacity != nil {
		r = r.WithOpacity(*rec.Opacity)
	}
	r.StaticURL = rec.StaticURL
	r.Locked = rec.Locked
	return r, nil
}

func (r Region) record() regionRecord {
	rec := regionRecord{
		ID:        r.ID,
		Key:       r.Key,
		Type:      string(r.Kind),
		X:         r.Box.X,
		Y:         r.Box.Y,
		W:         r.Box.W,
		H:         r.Box.H,
		Locked:    r.Locked,
		StaticURL: r.StaticURL,
	}
	if r.Opacity != 1 {
		o := r.Opacity
		rec.Opacity = &o
	}
	if s, ok := r.Text(); ok {
		rec.FontFamily = s.FontFamily
		rec.FontSize = s.FontSize
		rec.FontWeight = s.FontWeight
		rec.Color = s.Color
		rec.Align = string(s.Align)
		rec.VerticalAlign = string(s.VerticalAlign)
		rec.LineHeight = s.LineHeight
	}
	if s, ok := r.Image(); ok {
		rec.FitMode = string(s.Fit)
	}
	return rec
}

func (r Region) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.record())
}

func (r *Region) UnmarshalJSON(data []byte) error {
	var rec regionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	region, err := rec.region()
	if err != nil {
		return err
	}
	*r = region
	return nil
}

func (r Region) MarshalYAML() (interface{}, error) {
	return r.record(), nil
}

func (r *Region) UnmarshalYAML(value *yaml.Node) error {
	var rec regionRecord
	if err := value.Decode(&rec); err != nil {
		return err
	}
	region, err := rec.region()
	if err != nil {
		return err
	}
	*r = region
	return nil
}

// DecodeTemplateJSON reads and validates one template.
func DecodeTemplateJSON(r io.Reader) (*Template, error) {
	var t Template
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
