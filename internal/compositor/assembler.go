package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"io"
	"time"
)

// MinFrames is the smallest frame count accepted for an animation
const MinFrames = 2

// Assembler builds looping animated GIFs from a sequence of frames
type Assembler struct {
	comp *Compositor
}

// NewAssembler creates an assembler that composites frames with comp
func NewAssembler(comp *Compositor) *Assembler {
	return &Assembler{comp: comp}
}

// Assemble composites every frame with the same stickers and streams the
// animation to w in frame order. It returns the first composited frame.
// Nothing is written when fewer than MinFrames frames are given.
func (a *Assembler) Assemble(ctx context.Context, w io.Writer, frames []Source, delay time.Duration, stickers []Sticker) (image.Image, error) {
	if len(frames) < MinFrames {
		return nil, fmt.Errorf("%w: at least %d frames are required, got %d", ErrInvalidInput, MinFrames, len(frames))
	}

	delay = a.comp.ClampDelay(delay)
	opts := a.comp.Options()
	gw := newGIFWriter(w, opts.Width, opts.Height, palette.Plan9)

	var first image.Image
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src, err := a.comp.Decode(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}

		out, err := a.comp.Composite(ctx, src, stickers)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if i == 0 {
			first = out
		}

		err = a.comp.bounded(ctx, func() error {
			if err := gw.WriteFrame(Palettize(out), delay); err != nil {
				return fmt.Errorf("%w: %v", ErrEncode, err)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return first, nil
}

// Palettize converts img to the fixed Plan 9 palette with Floyd-Steinberg dithering
func Palettize(img image.Image) *image.Paletted {
	b := img.Bounds()
	pm := image.NewPaletted(b, palette.Plan9)
	draw.FloydSteinberg.Draw(pm, b, img, b.Min)
	return pm
}
