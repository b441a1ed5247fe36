package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	goimage "image"
	"image/color"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newscard/internal/files"
	"newscard/internal/image"
	"newscard/internal/services"
	"newscard/internal/storage"
)

const testCatalog = `channels:
  - {id: "1", name: Daily Star, slug: daily-star, logoUrl: star.png}
templates:
  - id: t1
    channelId: "1"
    name: Classic
    backgroundUrl: bg.png
    width: 400
    height: 225
    createdAt: 2026-01-01T00:00:00Z
    boxes:
      - {id: b1, key: main_photo, type: IMAGE, x: 0, y: 0, w: 50, h: 100}
      - {id: b2, key: headline, type: TEXT, x: 55, y: 10, w: 40, h: 50}
      - {id: b3, key: logo, type: LOGO, x: 80, y: 80, w: 15, h: 15}
      - {id: b4, key: brand, type: WATERMARK, x: 60, y: 70, w: 10, h: 10, staticUrl: wm.png}
assets:
  - {id: l1, type: LOGO, name: Star, url: star.png}
`

func writePNG(t *testing.T, path string, c color.Color) []byte {
	t.Helper()
	img := goimage.NewNRGBA(goimage.Rect(0, 0, 8, 8))
	for i := 0; i < 64; i++ {
		img.Set(i%8, i/8, c)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if path != "" {
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "bg.png"), color.NRGBA{G: 255, A: 255})
	writePNG(t, filepath.Join(dir, "star.png"), color.NRGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(dir, "wm.png"), color.NRGBA{A: 255})
	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0644); err != nil {
		t.Fatal(err)
	}

	catalog, err := storage.OpenCatalog(catalogPath)
	if err != nil {
		t.Fatal(err)
	}
	fonts, err := image.NewFontRegistry()
	if err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard, "", 0)
	loader := files.NewLoader(dir, time.Second, 0)
	cards := services.NewCardService(catalog, image.NewCompositor(loader, logger, 2), fonts, "", logger)
	return New(cards, catalog, []string{testKey}, logger).Router()
}

const testKey = "premium-key"

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doWithKey(t, h, method, path, body, "")
}

func doWithKey(t *testing.T, h http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(apiKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodePNG(t *testing.T, rec *httptest.ResponseRecorder) goimage.Image {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

// isRGB reports whether the pixel at (x, y) is within 2 of want per channel.
func isRGB(img goimage.Image, x, y int, want [3]int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	for i, v := range [3]int{int(r >> 8), int(g >> 8), int(b >> 8)} {
		if d := v - want[i]; d > 2 || d < -2 {
			return false
		}
	}
	return true
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestChannelsAndTemplates(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/channels", "")
	var channels []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &channels); err != nil || len(channels) != 1 || channels[0]["_id"] != "1" {
		t.Fatalf("channels: %s (%v)", rec.Body.String(), err)
	}

	rec = do(t, h, http.MethodGet, "/api/channels/1/templates", "")
	var templates []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &templates); err != nil || len(templates) != 1 {
		t.Fatalf("templates: %s (%v)", rec.Body.String(), err)
	}
	boxes, _ := templates[0]["boxes"].([]any)
	if len(boxes) != 4 {
		t.Errorf("boxes: %v", templates[0]["boxes"])
	}

	if rec := do(t, h, http.MethodGet, "/api/channels/9/templates", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown channel: got %d", rec.Code)
	}
}

func TestTemplateForm(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/templates/t1/form", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	var form services.Form
	if err := json.Unmarshal(rec.Body.Bytes(), &form); err != nil {
		t.Fatal(err)
	}
	if len(form.Fields) != 3 || form.Fields[0].Label != "Main Photo" || len(form.Fields[2].Options) != 1 {
		t.Errorf("form: %+v", form)
	}

	if rec := do(t, h, http.MethodGet, "/api/templates/nope/form", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing template: got %d", rec.Code)
	}
}

func TestRender(t *testing.T) {
	h := newTestServer(t)
	photo := writePNG(t, "", color.NRGBA{B: 255, A: 255})
	body, _ := json.Marshal(map[string]any{
		"templateId": "t1",
		"quality":    "sd",
		"fields":     map[string]string{"headline": "Flood waters rise", "logo": "l1"},
		"uploads":    map[string][]byte{"main_photo": photo},
	})

	rec := do(t, h, http.MethodPost, "/api/render", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "news-card-") {
		t.Errorf("content disposition %q", cd)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Fatalf("size %v", b)
	}
	// left half is the uploaded photo, the right edge the background
	if r, g, b, _ := img.At(100, 360).RGBA(); r>>8 > 2 || g>>8 > 2 || b>>8 < 253 {
		t.Errorf("photo pixel: %d %d %d", r>>8, g>>8, b>>8)
	}
	if r, g, b, _ := img.At(1270, 10).RGBA(); r>>8 > 2 || g>>8 < 253 || b>>8 > 2 {
		t.Errorf("background pixel: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestRenderErrors(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"no target", `{}`, http.StatusBadRequest},
		{"bad quality", `{"templateId":"t1","quality":"8k"}`, http.StatusBadRequest},
		{"claimed plan", `{"templateId":"t1","plan":"premium","quality":"2K"}`, http.StatusForbidden},
		{"missing template", `{"templateId":"zzz"}`, http.StatusNotFound},
		{"tier not allowed", `{"templateId":"t1","quality":"4K"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/api/render", tt.body); rec.Code != tt.code {
				t.Errorf("got %d %s, want %d", rec.Code, rec.Body.String(), tt.code)
			}
		})
	}
}

func TestRenderPlanComesFromKey(t *testing.T) {
	h := newTestServer(t)
	claim := `{"templateId":"t1","quality":"%s","plan":"premium"}`

	if rec := do(t, h, http.MethodPost, "/api/render", fmt.Sprintf(claim, "4K")); rec.Code != http.StatusForbidden {
		t.Errorf("4K claimed in the body: got %d", rec.Code)
	}
	if rec := doWithKey(t, h, http.MethodPost, "/api/render", fmt.Sprintf(claim, "4K"), "guess"); rec.Code != http.StatusForbidden {
		t.Errorf("4K with a wrong key: got %d", rec.Code)
	}

	// HD without a key: free plan, the watermark region is painted
	free := decodePNG(t, do(t, h, http.MethodPost, "/api/render", fmt.Sprintf(claim, "HD")))
	if b := free.Bounds(); b.Dx() != 1920 || b.Dy() != 1080 {
		t.Fatalf("free size %v", b)
	}
	if !isRGB(free, 1248, 810, [3]int{0, 0, 0}) {
		t.Errorf("free render misses the watermark: %v", free.At(1248, 810))
	}

	premium := decodePNG(t, doWithKey(t, h, http.MethodPost, "/api/render", fmt.Sprintf(claim, "4K"), testKey))
	if b := premium.Bounds(); b.Dx() != 3840 || b.Dy() != 2160 {
		t.Fatalf("premium size %v", b)
	}
	if !isRGB(premium, 2496, 1620, [3]int{0, 255, 0}) {
		t.Errorf("premium render shows the watermark: %v", premium.At(2496, 1620))
	}
}

func TestRenderIgnoresTypedImageReferences(t *testing.T) {
	h := newTestServer(t)
	secret := filepath.Join(t.TempDir(), "secret.png")
	writePNG(t, secret, color.NRGBA{B: 255, A: 255})

	for _, ref := range []string{"file://" + filepath.ToSlash(secret), secret, "../secret.png", "bg.png"} {
		body, _ := json.Marshal(map[string]any{
			"templateId": "t1",
			"quality":    "sd",
			"fields":     map[string]string{"main_photo": ref},
		})
		img := decodePNG(t, do(t, h, http.MethodPost, "/api/render", string(body)))
		// the photo box is left empty, showing the green background
		if !isRGB(img, 100, 360, [3]int{0, 255, 0}) {
			t.Errorf("%s: photo box painted %v", ref, img.At(100, 360))
		}
	}
}
