package files

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	cardimg "newscard/internal/image"
)

var (
	ErrUnsupportedSource = errors.New("unsupported image source")
	ErrTooLarge          = errors.New("image is too large")
)

// Loader resolves image references of a card: http(s) URLs, data: URIs,
// file:// URLs, paths relative to the assets directory, and raw upload bytes.
type Loader struct {
	assetsDir string
	maxBytes  int64
	client    *http.Client
}

func NewLoader(assetsDir string, timeout time.Duration, maxBytes int64) *Loader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Loader{
		assetsDir: assetsDir,
		maxBytes:  maxBytes,
		client:    &http.Client{Timeout: timeout},
	}
}

func (l *Loader) Load(ctx context.Context, src cardimg.Source) (image.Image, error) {
	if len(src.Data) > 0 {
		return decode(bytes.NewReader(src.Data))
	}
	ref := strings.TrimSpace(src.URL)
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty reference", ErrUnsupportedSource)
	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURI(ref)
		if err != nil {
			return nil, err
		}
		return decode(bytes.NewReader(data))
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return l.fetch(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		return l.open(u.Path)
	case strings.Contains(ref, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, ref)
	}
	path, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	return l.open(path)
}

// resolve places relative paths under the assets directory. Paths that
// climb out of it are refused.
func (l *Loader) resolve(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	rel := filepath.FromSlash(path)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s leaves the assets directory", ErrUnsupportedSource, path)
	}
	return filepath.Join(l.assetsDir, rel), nil
}

func (l *Loader) open(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	data, err := l.read(file)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return decode(bytes.NewReader(data))
}

func (l *Loader) fetch(ctx context.Context, ref string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %s", resp.Status)
	}
	body, err := l.read(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return decode(bytes.NewReader(body))
}

// read reads r whole, failing with ErrTooLarge past maxBytes.
func (l *Loader) read(r io.Reader) ([]byte, error) {
	if l.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, l.maxBytes)
	}
	return data, nil
}

func decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// decodeDataURI accepts base64 payloads only, which is what the editor and
// browsers produce for images.
func decodeDataURI(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data uri", ErrUnsupportedSource)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data uri is not base64", ErrUnsupportedSource)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return data, nil
}
