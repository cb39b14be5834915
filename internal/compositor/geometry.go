package compositor

import (
	"fmt"
	"image"
	"math"
)

// Placement is a sticker placement as sent by the client.
// X and Y are normalized to the canvas, Scale is a fraction of the canvas width
// and Rotation is in degrees, clockwise.
type Placement struct {
	StickerID int64   `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Scale     float64 `json:"scale"`
	Rotation  float64 `json:"rotation"`
}

// Geometry is the absolute pixel geometry of a sticker on a canvas
type Geometry struct {
	Width    int
	Height   int
	CenterX  float64
	CenterY  float64
	Rotation float64
}

// Sticker is a resolved placement ready to be drawn
type Sticker struct {
	Image image.Image
	Geometry
}

// ResolveGeometry converts a normalized placement into pixel geometry for a
// canvas of canvasW x canvasH. When mirrored is set the horizontal anchor is
// flipped so the render matches a mirrored camera preview.
func ResolveGeometry(p Placement, assetW, assetH, canvasW, canvasH int, mirrored bool) (Geometry, error) {
	if !finite(p.X) || p.X < 0 || p.X > 1 {
		return Geometry{}, fmt.Errorf("%w: sticker %d x=%v out of range", ErrInvalidInput, p.StickerID, p.X)
	}
	if !finite(p.Y) || p.Y < 0 || p.Y > 1 {
		return Geometry{}, fmt.Errorf("%w: sticker %d y=%v out of range", ErrInvalidInput, p.StickerID, p.Y)
	}
	if !finite(p.Scale) || p.Scale <= 0 || p.Scale > 1 {
		return Geometry{}, fmt.Errorf("%w: sticker %d scale=%v out of range", ErrInvalidInput, p.StickerID, p.Scale)
	}
	if !finite(p.Rotation) {
		return Geometry{}, fmt.Errorf("%w: sticker %d rotation is not a number", ErrInvalidInput, p.StickerID)
	}
	if assetW <= 0 || assetH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Geometry{}, fmt.Errorf("%w: empty asset or canvas", ErrInvalidInput)
	}

	width := int(math.Round(float64(canvasW) * p.Scale))
	if width < 1 {
		width = 1
	}
	height := int(math.Round(float64(width) * float64(assetH) / float64(assetW)))
	if height < 1 {
		height = 1
	}

	x := p.X
	if mirrored {
		x = 1 - x
	}

	return Geometry{
		Width:    width,
		Height:   height,
		CenterX:  float64(canvasW) * x,
		CenterY:  float64(canvasH) * p.Y,
		Rotation: NormalizeRotation(p.Rotation),
	}, nil
}

// NormalizeRotation maps any angle into [0, 360)
func NormalizeRotation(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	return r
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
