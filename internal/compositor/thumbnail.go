package compositor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Thumbnail scales src so its larger side equals size. No padding is added.
func Thumbnail(src image.Image, size int) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || size <= 0 {
		return imaging.Clone(src)
	}

	ratio := math.Min(float64(size)/float64(b.Dx()), float64(size)/float64(b.Dy()))
	w := int(math.Round(float64(b.Dx()) * ratio))
	h := int(math.Round(float64(b.Dy()) * ratio))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	return imaging.Resize(src, w, h, imaging.Lanczos)
}

// Thumbnail renders a thumbnail at the configured size
func (c *Compositor) Thumbnail(src image.Image) *image.NRGBA {
	return Thumbnail(src, c.opts.ThumbnailSize)
}
