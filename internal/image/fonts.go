package image

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// FontProvider hands out font faces by family name. Faces are not safe for
// concurrent use, so every call returns a fresh one.
type FontProvider interface {
	Face(family, weight string, size float64) (font.Face, error)
}

// FontRegistry is a FontProvider over parsed TrueType fonts. Unknown families
// resolve to the embedded Go fonts.
type FontRegistry struct {
	mu    sync.RWMutex
	fonts map[string]*truetype.Font

	regular *truetype.Font
	bold    *truetype.Font
}

func NewFontRegistry() (*FontRegistry, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse fallback font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse fallback bold font: %w", err)
	}
	return &FontRegistry{
		fonts:   make(map[string]*truetype.Font),
		regular: regular,
		bold:    bold,
	}, nil
}

func (r *FontRegistry) Register(family string, bold bool, data []byte) error {
	f, err := truetype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", family, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fonts[fontKey(family, bold)] = f
	return nil
}

// LoadDir registers every .ttf file in dir. The family is the file name up
// to the first dash; a "Bold" style suffix marks the bold variant, so
// "HindSiliguri-Bold.ttf" registers the bold face of "Hind Siliguri".
func (r *FontRegistry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read fonts dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".ttf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("read font %s: %w", e.Name(), err)
		}
		family, style, _ := strings.Cut(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), "-")
		if err := r.Register(family, strings.Contains(strings.ToLower(style), "bold"), data); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *FontRegistry) Face(family, weight string, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size %v", size)
	}
	return truetype.NewFace(r.lookup(family, IsBold(weight)), &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

func (r *FontRegistry) lookup(family string, bold bool) *truetype.Font {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.fonts[fontKey(family, bold)]; ok {
		return f
	}
	if bold {
		if f, ok := r.fonts[fontKey(family, false)]; ok {
			return f
		}
		return r.bold
	}
	return r.regular
}

// IsBold reads CSS-style weights: "bold", "bolder" or 600 and above.
func IsBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	if w == "bold" || w == "bolder" {
		return true
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 600
}

func fontKey(family string, bold bool) string {
	k := strings.ToLower(strings.ReplaceAll(family, " ", ""))
	if bold {
		k += "|bold"
	}
	return k
}
