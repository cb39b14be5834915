package compositor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
)

// Options configures the canvas and processing limits
type Options struct {
	Width          int
	Height         int
	Background     color.Color
	ThumbnailSize  int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	DefaultDelay   time.Duration
	MaxImageBytes  int
	MaxPixels      int
	ProcessTimeout time.Duration
}

// DefaultOptions returns the 640x480 black canvas used by the editor
func DefaultOptions() Options {
	return Options{
		Width:          640,
		Height:         480,
		Background:     color.Black,
		ThumbnailSize:  100,
		MinDelay:       100 * time.Millisecond,
		MaxDelay:       1000 * time.Millisecond,
		DefaultDelay:   200 * time.Millisecond,
		MaxImageBytes:  10 << 20,
		MaxPixels:      40_000_000,
		ProcessTimeout: 30 * time.Second,
	}
}

// Compositor renders source frames and stickers onto a fixed canvas
type Compositor struct {
	opts Options
}

// New creates a compositor, filling zero fields from DefaultOptions
func New(opts Options) *Compositor {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.Background == nil {
		opts.Background = def.Background
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = def.ThumbnailSize
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = def.MinDelay
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = def.MaxDelay
		if opts.MaxDelay < opts.MinDelay {
			opts.MaxDelay = opts.MinDelay
		}
	}
	if opts.DefaultDelay <= 0 {
		opts.DefaultDelay = def.DefaultDelay
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = def.MaxImageBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = def.ProcessTimeout
	}
	return &Compositor{opts: opts}
}

// Options returns the effective options
func (c *Compositor) Options() Options {
	return c.opts
}

// Contain fills the canvas with the background color and centers src on it,
// scaled uniformly so it fits without cropping.
func (c *Compositor) Contain(src image.Image) *image.NRGBA {
	canvas := imaging.New(c.opts.Width, c.opts.Height, c.opts.Background)

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return canvas
	}

	scale := math.Min(float64(c.opts.Width)/float64(b.Dx()), float64(c.opts.Height)/float64(b.Dy()))
	w := clampInt(int(math.Round(float64(b.Dx())*scale)), 1, c.opts.Width)
	h := clampInt(int(math.Round(float64(b.Dy())*scale)), 1, c.opts.Height)

	fitted := imaging.Resize(src, w, h, imaging.Lanczos)
	return imaging.Overlay(canvas, fitted, image.Pt((c.opts.Width-w)/2, (c.opts.Height-h)/2), 1.0)
}

// Composite renders src onto the canvas and draws stickers in list order,
// so later stickers end up on top.
func (c *Compositor) Composite(ctx context.Context, src image.Image, stickers []Sticker) (*image.NRGBA, error) {
	var out *image.NRGBA
	err := c.bounded(ctx, func() error {
		out = c.Contain(src)
		for _, s := range stickers {
			out = drawSticker(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func drawSticker(dst *image.NRGBA, s Sticker) *image.NRGBA {
	var img image.Image = imaging.Resize(s.Image, s.Width, s.Height, imaging.Lanczos)
	if s.Rotation != 0 {
		// imaging rotates counter-clockwise
		img = imaging.Rotate(img, -s.Rotation, color.Transparent)
	}

	b := img.Bounds()
	pos := image.Pt(
		int(math.Round(s.CenterX-float64(b.Dx())/2)),
		int(math.Round(s.CenterY-float64(b.Dy())/2)),
	)
	return imaging.Overlay(dst, img, pos, 1.0)
}

// EncodePNG encodes img as PNG
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// EncodeDataURL encodes img as a PNG data URL
func EncodeDataURL(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ClampDelay bounds a frame delay to the configured range; zero selects the default
func (c *Compositor) ClampDelay(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return c.opts.DefaultDelay
	case d < c.opts.MinDelay:
		return c.opts.MinDelay
	case d > c.opts.MaxDelay:
		return c.opts.MaxDelay
	}
	return d
}

// bounded runs fn under the processing timeout
func (c *Compositor) bounded(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ProcessTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
