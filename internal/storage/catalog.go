package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"newscard/internal/card"
)

var ErrNotFound = errors.New("not found")

type Settings struct {
	WatermarkURL string `yaml:"watermarkUrl,omitempty"`
}

type catalogFile struct {
	Settings  Settings         `yaml:"settings"`
	Channels  []card.Channel   `yaml:"channels"`
	Templates []*card.Template `yaml:"templates"`
	Assets    []card.Asset     `yaml:"assets"`
}

// Catalog is the channel, template and asset store, kept in memory and
// written back to a YAML file on every change.
type Catalog struct {
	path string
	now  func() time.Time

	mu   sync.RWMutex
	data catalogFile
}

// OpenCatalog reads path. A missing file yields an empty catalog that is
// created on the first save.
func OpenCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path, now: time.Now}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c.data); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for _, t := range c.data.Templates {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("catalog template %q: %w", t.ID, err)
		}
	}
	return c, nil
}

func (c *Catalog) Channels() []card.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.data.Channels)
}

func (c *Catalog) Channel(id string) (card.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.data.Channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return card.Channel{}, fmt.Errorf("channel %q: %w", id, ErrNotFound)
}

// SaveChannel inserts or replaces ch. A new channel without an id gets one.
func (c *Catalog) SaveChannel(ch card.Channel) (card.Channel, error) {
	if ch.Name == "" {
		return card.Channel{}, fmt.Errorf("channel name is required")
	}
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.data.Channels, func(x card.Channel) bool { return x.ID == ch.ID })
	if i >= 0 {
		c.data.Channels[i] = ch
	} else {
		c.data.Channels = append(c.data.Channels, ch)
	}
	return ch, c.save()
}

// DeleteChannel removes the channel only; its templates stay in the catalog.
func (c *Catalog) DeleteChannel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.data.Channels, func(x card.Channel) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("channel %q: %w", id, ErrNotFound)
	}
	c.data.Channels = slices.Delete(c.data.Channels, i, i+1)
	return c.save()
}

// TemplatesByChannel lists the channel's own templates together with the
// global ones, newest first.
func (c *Catalog) TemplatesByChannel(channelID string) []*card.Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*card.Template
	for _, t := range c.data.Templates {
		if t.ChannelID == channelID || t.ChannelID == card.GlobalChannel {
			out = append(out, cloneTemplate(t))
		}
	}
	slices.SortStableFunc(out, func(a, b *card.Template) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (c *Catalog) Template(id string) (*card.Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.templateIndex(id); i >= 0 {
		return cloneTemplate(c.data.Templates[i]), nil
	}
	return nil, fmt.Errorf("template %q: %w", id, ErrNotFound)
}

// SaveTemplate inserts or replaces t. New templates get an id and a
// creation time; the stored copy is returned.
func (c *Catalog) SaveTemplate(t *card.Template) (*card.Template, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	saved := cloneTemplate(t)
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.templateIndex(saved.ID); i >= 0 {
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = c.data.Templates[i].CreatedAt
		}
		c.data.Templates[i] = saved
	} else {
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = c.now().UTC()
		}
		c.data.Templates = append(c.data.Templates, saved)
	}
	if err := c.save(); err != nil {
		return nil, err
	}
	return cloneTemplate(saved), nil
}

func (c *Catalog) DeleteTemplate(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.templateIndex(id)
	if i < 0 {
		return fmt.Errorf("template %q: %w", id, ErrNotFound)
	}
	c.data.Templates = slices.Delete(c.data.Templates, i, i+1)
	return c.save()
}

// Assets lists assets of one kind, or all of them for an empty kind.
func (c *Catalog) Assets(kind card.Kind) []card.Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []card.Asset
	for _, a := range c.data.Assets {
		if kind == "" || a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// AssetMap resolves asset ids of every selectable kind to their URLs.
func (c *Catalog) AssetMap() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(map[string]string, len(c.data.Assets))
	for _, a := range c.data.Assets {
		if a.Kind.Selectable() {
			m[a.ID] = a.URL
		}
	}
	return m
}

func (c *Catalog) SaveAsset(a card.Asset) (card.Asset, error) {
	if !a.Kind.Selectable() {
		return card.Asset{}, fmt.Errorf("asset kind %q is not selectable", a.Kind)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.data.Assets, func(x card.Asset) bool { return x.ID == a.ID })
	if i >= 0 {
		c.data.Assets[i] = a
	} else {
		c.data.Assets = append(c.data.Assets, a)
	}
	return a, c.save()
}

func (c *Catalog) DeleteAsset(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.data.Assets, func(x card.Asset) bool { return x.ID == id })
	if i < 0 {
		return fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	c.data.Assets = slices.Delete(c.data.Assets, i, i+1)
	return c.save()
}

func (c *Catalog) WatermarkURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Settings.WatermarkURL
}

func (c *Catalog) templateIndex(id string) int {
	return slices.IndexFunc(c.data.Templates, func(t *card.Template) bool { return t.ID == id })
}

// save writes the catalog through a temp file and a rename so readers of the
// file never see a partial write. Callers hold the write lock.
func (c *Catalog) save() error {
	raw, err := yaml.Marshal(&c.data)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// cloneTemplate copies t deep enough that callers can edit its region stack.
func cloneTemplate(t *card.Template) *card.Template {
	cp := *t
	cp.Boxes = slices.Clone(t.Boxes)
	return &cp
}
