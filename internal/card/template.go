// Package card holds the data model of a news card template: a background
// image plus an ordered stack of content regions.
package card

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// GlobalChannel owns templates that are offered to every channel.
const GlobalChannel = "global"

var ErrInvalidTemplate = errors.New("invalid template")

// Template is a reusable card design. Boxes are stored bottom to top: index 0
// is painted first.
type Template struct {
	ID            string    `json:"_id" yaml:"id"`
	ChannelID     string    `json:"channelId" yaml:"channelId"`
	Name          string    `json:"name" yaml:"name"`
	BackgroundURL string    `json:"backgroundUrl" yaml:"backgroundUrl"`
	WatermarkURL  string    `json:"watermarkUrl,omitempty" yaml:"watermarkUrl,omitempty"`
	Width         int       `json:"width" yaml:"width"`
	Height        int       `json:"height" yaml:"height"`
	Boxes         []Region  `json:"boxes" yaml:"boxes"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
}

func (t *Template) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidTemplate, t.Width, t.Height)
	}
	seen := make(map[string]struct{}, len(t.Boxes))
	for _, r := range t.Boxes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate region id %q", ErrInvalidTemplate, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

func (t *Template) Region(id string) (Region, bool) {
	if i := t.indexOf(id); i >= 0 {
		return t.Boxes[i], true
	}
	return Region{}, false
}

// AddRegion puts r on top of the stack.
func (t *Template) AddRegion(r Region) {
	t.Boxes = append(t.Boxes, r)
}

func (t *Template) RemoveRegion(id string) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.Boxes = append(t.Boxes[:i], t.Boxes[i+1:]...)
	return true
}

// MoveRegion shifts a region delta places up (towards the top) or down the
// stack, stopping at either end.
func (t *Template) MoveRegion(id string, delta int) error {
	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("region %q not found", id)
	}
	j := min(max(i+delta, 0), len(t.Boxes)-1)
	r := t.Boxes[i]
	if j > i {
		copy(t.Boxes[i:j], t.Boxes[i+1:j+1])
	} else {
		copy(t.Boxes[j+1:i+1], t.Boxes[j:i])
	}
	t.Boxes[j] = r
	return nil
}

func (t *Template) indexOf(id string) int {
	for i, r := range t.Boxes {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Field is one entry of the form generated from a template.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Kind  Kind   `json:"kind"`
}

// FormFields lists the user-editable fields in stacking order. Watermarks
// and pinned logos/ads are not user input.
func (t *Template) FormFields() []Field {
	var fields []Field
	for _, r := range t.Boxes {
		if r.Kind == KindWatermark || r.Pinned() {
			continue
		}
		fields = append(fields, Field{Key: r.Key, Label: Label(r.Key), Kind: r.Kind})
	}
	return fields
}

// Label turns a field key like "main_photo" into "Main Photo".
func Label(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, n := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + w[n:]
	}
	return strings.Join(words, " ")
}

type Channel struct {
	ID          string `json:"_id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Slug        string `json:"slug" yaml:"slug"`
	LogoURL     string `json:"logoUrl" yaml:"logoUrl"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Asset is a selectable logo or ad image.
type Asset struct {
	ID   string `json:"id" yaml:"id"`
	Kind Kind   `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}
