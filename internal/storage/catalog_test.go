package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"newscard/internal/card"
)

const catalogYAML = `settings:
  watermarkUrl: https://cdn.example.com/wm.png
channels:
  - id: "1"
    name: Daily Star
    slug: daily-star
    logoUrl: logos/star.png
  - id: "2"
    name: Evening Post
    slug: evening-post
    logoUrl: logos/post.png
templates:
  - id: old
    channelId: "1"
    name: Classic
    backgroundUrl: bg/classic.png
    width: 800
    height: 450
    createdAt: 2026-01-01T00:00:00Z
    boxes:
      - {id: b1, key: headline, type: TEXT, x: 10, y: 10, w: 80, h: 30, fontSize: 24, align: center}
      - {id: b2, key: logo, type: LOGO, x: 0, y: 0, w: 15, h: 15, fitMode: contain}
  - id: shared
    channelId: global
    name: Shared
    backgroundUrl: bg/shared.png
    width: 1080
    height: 1080
    createdAt: 2026-02-01T00:00:00Z
    boxes: []
  - id: other
    channelId: "2"
    name: Other
    backgroundUrl: bg/other.png
    width: 800
    height: 450
    createdAt: 2026-03-01T00:00:00Z
    boxes: []
assets:
  - {id: l1, type: LOGO, name: Star, url: logos/star.png}
  - {id: a1, type: ADS, name: Bank, url: ads/bank.png}
`

func openTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := OpenCatalog(path)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	return c, path
}

func TestOpenCatalogMissingFile(t *testing.T) {
	c, err := OpenCatalog(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	if len(c.Channels()) != 0 || len(c.TemplatesByChannel("1")) != 0 {
		t.Error("expected an empty catalog")
	}
}

func TestOpenCatalogRejectsInvalidTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	bad := "templates:\n  - id: t\n    width: 0\n    height: 10\n"
	if err := os.WriteFile(path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenCatalog(path); !errors.Is(err, card.ErrInvalidTemplate) {
		t.Errorf("got %v, want ErrInvalidTemplate", err)
	}
}

func TestCatalogLookups(t *testing.T) {
	c, _ := openTestCatalog(t)

	if got := len(c.Channels()); got != 2 {
		t.Errorf("channels: got %d", got)
	}
	ch, err := c.Channel("2")
	if err != nil || ch.Slug != "evening-post" {
		t.Errorf("Channel(2): %+v, %v", ch, err)
	}
	if _, err := c.Channel("9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Channel(9): got %v, want ErrNotFound", err)
	}

	tpl, err := c.Template("old")
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if len(tpl.Boxes) != 2 || tpl.Boxes[1].Kind != card.KindLogo {
		t.Errorf("boxes: %+v", tpl.Boxes)
	}
	if _, err := c.Template("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Template(nope): got %v", err)
	}

	if got := c.WatermarkURL(); got != "https://cdn.example.com/wm.png" {
		t.Errorf("watermark: %q", got)
	}
}

func TestTemplatesByChannel(t *testing.T) {
	c, _ := openTestCatalog(t)

	got := c.TemplatesByChannel("1")
	var ids []string
	for _, tpl := range got {
		ids = append(ids, tpl.ID)
	}
	if len(ids) != 2 || ids[0] != "shared" || ids[1] != "old" {
		t.Errorf("got %v, want [shared old]", ids)
	}

	// callers get copies
	got[1].Boxes = nil
	again, _ := c.Template("old")
	if len(again.Boxes) != 2 {
		t.Error("returned template aliases the store")
	}
}

func TestAssets(t *testing.T) {
	c, _ := openTestCatalog(t)

	if got := c.Assets(card.KindLogo); len(got) != 1 || got[0].ID != "l1" {
		t.Errorf("logos: %+v", got)
	}
	if got := c.Assets(""); len(got) != 2 {
		t.Errorf("all assets: %+v", got)
	}
	m := c.AssetMap()
	if m["l1"] != "logos/star.png" || m["a1"] != "ads/bank.png" || len(m) != 2 {
		t.Errorf("asset map: %v", m)
	}

	if _, err := c.SaveAsset(card.Asset{Kind: card.KindText, URL: "x"}); err == nil {
		t.Error("text asset accepted")
	}
	a, err := c.SaveAsset(card.Asset{Kind: card.KindAds, Name: "Shop", URL: "ads/shop.png"})
	if err != nil || a.ID == "" {
		t.Fatalf("SaveAsset: %+v, %v", a, err)
	}
	if c.AssetMap()[a.ID] != "ads/shop.png" {
		t.Error("new asset missing from map")
	}
}

func TestSaveTemplatePersists(t *testing.T) {
	c, path := openTestCatalog(t)
	stamp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return stamp }

	tpl := &card.Template{ChannelID: "2", Name: "New", BackgroundURL: "bg/new.png", Width: 1200, Height: 630}
	tpl.AddRegion(card.NewTextRegion("r1", "headline", card.Box{X: 5, Y: 70, W: 90, H: 25}, card.TextStyle{}))

	saved, err := c.SaveTemplate(tpl)
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if saved.ID == "" || !saved.CreatedAt.Equal(stamp) {
		t.Errorf("saved: id %q, createdAt %v", saved.ID, saved.CreatedAt)
	}
	if tpl.ID != "" {
		t.Error("SaveTemplate modified its argument")
	}

	reopened, err := OpenCatalog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Template(saved.ID)
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	style, ok := got.Boxes[0].Text()
	if !ok || style.FontFamily != card.DefaultFontFamily || got.Width != 1200 {
		t.Errorf("reloaded template: %+v", got)
	}
	if list := reopened.TemplatesByChannel("2"); list[0].ID != saved.ID {
		t.Errorf("newest template should come first, got %s", list[0].ID)
	}

	// replacing keeps the original creation time
	saved.Name = "Renamed"
	saved.CreatedAt = time.Time{}
	again, err := c.SaveTemplate(saved)
	if err != nil {
		t.Fatal(err)
	}
	if !again.CreatedAt.Equal(stamp) || again.Name != "Renamed" {
		t.Errorf("replace: %+v", again)
	}
}

func TestSaveTemplateValidates(t *testing.T) {
	c, _ := openTestCatalog(t)
	if _, err := c.SaveTemplate(&card.Template{Width: -1, Height: 1}); !errors.Is(err, card.ErrInvalidTemplate) {
		t.Errorf("got %v, want ErrInvalidTemplate", err)
	}
}

func TestDeleteTemplate(t *testing.T) {
	c, path := openTestCatalog(t)
	if err := c.DeleteTemplate("old"); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if err := c.DeleteTemplate("old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	reopened, err := OpenCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reopened.Template("old"); !errors.Is(err, ErrNotFound) {
		t.Error("delete was not persisted")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestSaveAndDeleteChannel(t *testing.T) {
	c, path := openTestCatalog(t)

	if _, err := c.SaveChannel(card.Channel{Slug: "nameless"}); err == nil {
		t.Error("channel without a name accepted")
	}
	ch, err := c.SaveChannel(card.Channel{Name: "Morning Bell", Slug: "morning-bell"})
	if err != nil || ch.ID == "" {
		t.Fatalf("SaveChannel: %+v, %v", ch, err)
	}
	if _, err := c.SaveChannel(card.Channel{ID: "2", Name: "Evening Post", Slug: "ep"}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	reopened, err := OpenCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(reopened.Channels()); got != 3 {
		t.Errorf("channels after save: got %d, want 3", got)
	}
	if got, _ := reopened.Channel("2"); got.Slug != "ep" {
		t.Errorf("replaced channel: %+v", got)
	}

	if err := c.DeleteChannel("2"); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if err := c.DeleteChannel("2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	if _, err := c.Template("other"); err != nil {
		t.Errorf("templates of a deleted channel should stay: %v", err)
	}
}

func TestDeleteAsset(t *testing.T) {
	c, path := openTestCatalog(t)
	if err := c.DeleteAsset("l1"); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	if err := c.DeleteAsset("l1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}
	reopened, err := OpenCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if m := reopened.AssetMap(); len(m) != 1 || m["a1"] == "" {
		t.Errorf("asset map after delete: %v", m)
	}
}
