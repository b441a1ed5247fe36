package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"newscard/internal/card"
	"newscard/internal/image"
	"newscard/internal/storage"
)

// FallbackChannel serves card requests for channels without templates.
const FallbackChannel = "1"

var ErrTierNotAllowed = errors.New("quality tier not allowed for plan")

type Quality string

const (
	QualityNative Quality = "NATIVE"
	QualitySD     Quality = "SD"
	QualityHD     Quality = "HD"
	Quality2K     Quality = "2K"
	Quality4K     Quality = "4K"
)

// Qualities lists the tiers offered to users, smallest first.
var Qualities = []Quality{QualitySD, QualityHD, Quality2K, Quality4K}

var tierWidths = map[Quality]int{
	QualitySD: 1280,
	QualityHD: 1920,
	Quality2K: 2560,
	Quality4K: 3840,
}

func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToUpper(strings.TrimSpace(s)))
	if q == "" {
		return QualityHD, nil
	}
	if _, ok := tierWidths[q]; ok || q == QualityNative {
		return q, nil
	}
	return "", fmt.Errorf("unknown quality %q", s)
}

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Allows reports whether the plan may render at quality q. Free renders are
// capped at HD.
func (p Plan) Allows(q Quality) bool {
	if p == PlanPremium {
		return true
	}
	return q != Quality2K && q != Quality4K
}

// TemplateStore is the part of the catalog a card render needs.
type TemplateStore interface {
	Template(id string) (*card.Template, error)
	TemplatesByChannel(channelID string) []*card.Template
	Assets(kind card.Kind) []card.Asset
	AssetMap() map[string]string
	WatermarkURL() string
}

type RenderRequest struct {
	// TemplateID picks the template; when empty the newest template of
	// ChannelID is used.
	TemplateID string
	ChannelID  string
	FormData   image.FormData
	Quality    Quality
	Plan       Plan
}

type RenderResult struct {
	PNG        []byte
	Width      int
	Height     int
	FileName   string
	TemplateID string
}

type CardService struct {
	store        TemplateStore
	compositor   *image.Compositor
	fonts        image.FontProvider
	watermarkURL string
	logger       *log.Logger
	now          func() time.Time
}

// NewCardService wires the render pipeline. watermarkURL, when set, replaces
// the catalog's system watermark.
func NewCardService(
	store TemplateStore,
	compositor *image.Compositor,
	fonts image.FontProvider,
	watermarkURL string,
	logger *log.Logger,
) *CardService {
	if logger == nil {
		logger = log.Default()
	}
	return &CardService{
		store:        store,
		compositor:   compositor,
		fonts:        fonts,
		watermarkURL: watermarkURL,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *CardService) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	tpl, err := s.pickTemplate(req)
	if err != nil {
		return nil, err
	}
	plan := req.Plan
	if plan == "" {
		plan = PlanFree
	}
	quality := req.Quality
	if quality == "" {
		quality = QualityHD
	}
	scale, err := Scale(tpl, quality)
	if err != nil {
		return nil, err
	}
	if !plan.Allows(quality) {
		return nil, fmt.Errorf("%w: %s on %s", ErrTierNotAllowed, quality, plan)
	}

	in := image.RenderInput{
		FormData:      req.FormData,
		AssetMap:      s.store.AssetMap(),
		Scale:         scale,
		WatermarkURL:  s.overlayURL(),
		HideWatermark: plan == PlanPremium,
	}
	canvas := image.NewCanvas(s.fonts)
	if err := s.compositor.Render(ctx, canvas, tpl, in); err != nil {
		return nil, err
	}

	out := canvas.Image()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	b := out.Bounds()
	s.logger.Printf("rendered template %s at %s (%dx%d, %d bytes)", tpl.ID, quality, b.Dx(), b.Dy(), buf.Len())

	return &RenderResult{
		PNG:        buf.Bytes(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		FileName:   fmt.Sprintf("news-card-%d.png", s.now().UnixMilli()),
		TemplateID: tpl.ID,
	}, nil
}

// Scale is the output multiplier that brings tpl to the tier's width.
func Scale(tpl *card.Template, q Quality) (float64, error) {
	if q == QualityNative {
		return 1, nil
	}
	w, ok := tierWidths[q]
	if !ok {
		return 0, fmt.Errorf("unknown quality %q", q)
	}
	if tpl.Width <= 0 {
		return 0, fmt.Errorf("%w: width %d", card.ErrInvalidTemplate, tpl.Width)
	}
	return float64(w) / float64(tpl.Width), nil
}

func (s *CardService) pickTemplate(req RenderRequest) (*card.Template, error) {
	if req.TemplateID != "" {
		return s.store.Template(req.TemplateID)
	}
	return s.ChannelTemplate(req.ChannelID)
}

// ChannelTemplate is the default template of a channel: its newest one, or
// the newest one of the fallback channel.
func (s *CardService) ChannelTemplate(channelID string) (*card.Template, error) {
	for _, id := range []string{channelID, FallbackChannel} {
		if list := s.store.TemplatesByChannel(id); len(list) > 0 {
			return list[0], nil
		}
	}
	return nil, fmt.Errorf("no template for channel %q: %w", channelID, storage.ErrNotFound)
}

func (s *CardService) overlayURL() string {
	if s.watermarkURL != "" {
		return s.watermarkURL
	}
	return s.store.WatermarkURL()
}

type FormField struct {
	card.Field
	// Options are the selectable assets of a Logo or Ads field.
	Options []card.Asset `json:"options,omitempty"`
}

type Form struct {
	TemplateID string      `json:"templateId"`
	Name       string      `json:"name"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Fields     []FormField `json:"fields"`
}

// Form describes the input a template asks for.
func (s *CardService) Form(templateID string) (*Form, error) {
	tpl, err := s.store.Template(templateID)
	if err != nil {
		return nil, err
	}
	return s.form(tpl), nil
}

func (s *CardService) form(tpl *card.Template) *Form {
	f := &Form{TemplateID: tpl.ID, Name: tpl.Name, Width: tpl.Width, Height: tpl.Height}
	for _, field := range tpl.FormFields() {
		ff := FormField{Field: field}
		if field.Kind.Selectable() {
			ff.Options = s.store.Assets(field.Kind)
		}
		f.Fields = append(f.Fields, ff)
	}
	return f
}

// TemplatesFor lists the templates offered for a channel.
func (s *CardService) TemplatesFor(channelID string) []*card.Template {
	return s.store.TemplatesByChannel(channelID)
}

// TemplateForm returns the template and its form in one lookup.
func (s *CardService) TemplateForm(templateID string) (*card.Template, *Form, error) {
	tpl, err := s.store.Template(templateID)
	if err != nil {
		return nil, nil, err
	}
	return tpl, s.form(tpl), nil
}
