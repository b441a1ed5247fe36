package image

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"golang.org/x/sync/errgroup"

	"newscard/internal/card"
)

const (
	FallbackBackground = "#ffffff"

	overlayWidth = 0.4 // of the native width
	overlayAlpha = 0.5
)

// Compositor renders whole templates. It holds no per-render state, so one
// Compositor serves concurrent renders as long as each has its own Surface.
type Compositor struct {
	loader   Loader
	logger   *log.Logger
	prefetch int
}

// NewCompositor returns a compositor loading images through loader. With
// prefetch > 1 up to that many images are fetched ahead of drawing; drawing
// itself always follows the stack order.
func NewCompositor(loader Loader, logger *log.Logger, prefetch int) *Compositor {
	if logger == nil {
		logger = log.Default()
	}
	return &Compositor{loader: loader, logger: logger, prefetch: prefetch}
}

// Render paints tpl onto s. Only a surface that cannot be initialised fails
// the call; broken images are logged and left out of the composite.
func (c *Compositor) Render(ctx context.Context, s Surface, tpl *card.Template, in RenderInput) error {
	if err := s.Init(tpl.Width, tpl.Height, in.scale()); err != nil {
		if !errors.Is(err, ErrSurface) {
			err = fmt.Errorf("%w: %v", ErrSurface, err)
		}
		return fmt.Errorf("render template %q: %w", tpl.ID, err)
	}

	fs := c.fetch(ctx, tpl, in)
	defer fs.wait()

	native := Rect{W: float64(tpl.Width), H: float64(tpl.Height)}
	drawn := fs.background != nil && attempt(c.logger, stageName("background", tpl.BackgroundURL), func() error {
		img, err := fs.background()
		if err != nil {
			return err
		}
		s.DrawImage(img, native, Rect{})
		return nil
	})
	if !drawn {
		s.Fill(ParseHexColor(FallbackBackground))
	}

	rr := NewRegionRenderer(s, tpl.Width, tpl.Height)
	for i, r := range tpl.Boxes {
		if r.Kind == card.KindWatermark && in.HideWatermark {
			continue
		}
		attempt(c.logger, stageName("region", r.Key), func() error {
			var img image.Image
			if load := fs.regions[i]; load != nil {
				var err error
				if img, err = load(); err != nil {
					return err
				}
			}
			return rr.Draw(r, in, img)
		})
	}

	if fs.overlay != nil {
		attempt(c.logger, stageName("watermark", overlayURL(tpl, in)), func() error {
			img, err := fs.overlay()
			if err != nil {
				return err
			}
			drawOverlay(s, tpl, img)
			return nil
		})
	}
	return nil
}

// drawOverlay centres the legacy watermark at 40% of the native width with a
// fixed alpha, independent of region opacity.
func drawOverlay(s Surface, tpl *card.Template, img image.Image) {
	b := img.Bounds()
	if b.Empty() {
		return
	}
	w := float64(tpl.Width) * overlayWidth
	h := w * float64(b.Dy()) / float64(b.Dx())
	dst := Rect{
		X: (float64(tpl.Width) - w) / 2,
		Y: (float64(tpl.Height) - h) / 2,
		W: w,
		H: h,
	}
	_ = s.WithOpacity(overlayAlpha, func() error {
		s.DrawImage(img, dst, Rect{})
		return nil
	})
}

func overlayURL(tpl *card.Template, in RenderInput) string {
	if in.WatermarkURL != "" {
		return in.WatermarkURL
	}
	return tpl.WatermarkURL
}

// pending yields one image load; it must be called at most once.
type pending func() (image.Image, error)

type fetchSet struct {
	background pending
	regions    []pending
	overlay    pending

	group     *errgroup.Group
	submitted chan struct{}
}

func (fs *fetchSet) wait() {
	if fs.group == nil {
		return
	}
	<-fs.submitted
	_ = fs.group.Wait()
}

type loaded struct {
	img image.Image
	err error
}

// fetch plans every image load of the render in draw order. Regions that
// will not be drawn get no load at all.
func (c *Compositor) fetch(ctx context.Context, tpl *card.Template, in RenderInput) *fetchSet {
	fs := &fetchSet{regions: make([]pending, len(tpl.Boxes))}

	type job struct {
		src  Source
		slot *pending
	}
	var jobs []job
	add := func(src Source, slot *pending) {
		if !src.Empty() {
			jobs = append(jobs, job{src: src, slot: slot})
		}
	}

	add(Source{URL: tpl.BackgroundURL}, &fs.background)
	for i, r := range tpl.Boxes {
		if !r.Kind.IsImage() || (r.Kind == card.KindWatermark && in.HideWatermark) {
			continue
		}
		add(ImageSource(r, in), &fs.regions[i])
	}
	if !in.HideWatermark {
		add(Source{URL: overlayURL(tpl, in)}, &fs.overlay)
	}

	if c.prefetch <= 1 {
		for _, j := range jobs {
			src := j.src
			*j.slot = func() (image.Image, error) {
				return c.loader.Load(ctx, src)
			}
		}
		return fs
	}

	fs.group = &errgroup.Group{}
	fs.group.SetLimit(c.prefetch)
	chans := make([]chan loaded, len(jobs))
	for i, j := range jobs {
		ch := make(chan loaded, 1)
		chans[i] = ch
		*j.slot = func() (image.Image, error) {
			r := <-ch
			return r.img, r.err
		}
	}
	// Go blocks once the limit is reached, so submission runs on its own
	// goroutine while drawing consumes results in order.
	fs.submitted = make(chan struct{})
	go func() {
		defer close(fs.submitted)
		for i, j := range jobs {
			src, ch := j.src, chans[i]
			fs.group.Go(func() error {
				img, err := c.loader.Load(ctx, src)
				ch <- loaded{img: img, err: err}
				return nil
			})
		}
	}()
	return fs
}
