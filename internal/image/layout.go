package image

import (
	"strings"

	"newscard/internal/card"
)

// DesignBasisWidth is the template width at which a region's font size is
// authored. Sizes scale with the native width relative to it.
const DesignBasisWidth = 1000.0

func ScaleFontSize(size float64, naturalW int) float64 {
	return size * float64(naturalW) / DesignBasisWidth
}

// MeasureFunc returns the advance width of s in native pixels.
type MeasureFunc func(s string) float64

type TextLayout struct {
	Box           Rect
	FontSize      float64 // native pixels, already scaled
	LineHeight    float64 // multiplier
	Align         card.Align
	VerticalAlign card.VerticalAlign
}

// Line is one painted line. X is the horizontal anchor (left edge, centre or
// right edge depending on alignment) and Y is the top of the line.
type Line struct {
	Text string
	X, Y float64
}

type TextBlock struct {
	Lines      []Line
	LineHeight float64
	Align      card.Align
}

// LayoutText wraps text into the box and places every line. Blank input
// produces no lines.
func LayoutText(text string, opts TextLayout, measure MeasureFunc) TextBlock {
	block := TextBlock{
		LineHeight: opts.FontSize * opts.LineHeight,
		Align:      opts.Align,
	}
	if strings.TrimSpace(text) == "" {
		return block
	}

	lines := WrapText(text, opts.Box.W, measure)
	total := float64(len(lines)) * block.LineHeight

	y := opts.Box.Y
	switch opts.VerticalAlign {
	case card.VAlignMiddle:
		y += (opts.Box.H - total) / 2
	case card.VAlignBottom:
		y += opts.Box.H - total
	}

	x := opts.Box.X
	switch opts.Align {
	case card.AlignCenter:
		x = opts.Box.CenterX()
	case card.AlignRight:
		x = opts.Box.X + opts.Box.W
	}

	block.Lines = make([]Line, len(lines))
	for i, l := range lines {
		block.Lines[i] = Line{Text: l, X: x, Y: y + float64(i)*block.LineHeight}
	}
	return block
}

// WrapText splits on manual newlines, then greedily fills each paragraph word
// by word up to maxWidth. A word is never broken, so a line holding a single
// overlong word may exceed maxWidth. Blank paragraphs keep an empty line.
func WrapText(text string, maxWidth float64, measure MeasureFunc) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			test := line + " " + w
			if measure(test) > maxWidth {
				lines = append(lines, line)
				line = w
				continue
			}
			line = test
		}
		lines = append(lines, line)
	}
	return lines
}
