package compositor

import (
	"context"
	"errors"
	"fmt"
)

// AssetLookup resolves a sticker id to the path of its image file.
// Implementations return an error wrapping ErrAssetNotFound for unknown ids.
type AssetLookup interface {
	StickerPath(ctx context.Context, id int64) (string, error)
}

// Resolver turns client placements into drawable stickers
type Resolver struct {
	lookup AssetLookup
	comp   *Compositor
}

// NewResolver creates a resolver that decodes assets with comp
func NewResolver(lookup AssetLookup, comp *Compositor) *Resolver {
	return &Resolver{lookup: lookup, comp: comp}
}

// Resolve looks up and loads every placement in order. A single unknown
// sticker aborts the whole call.
func (r *Resolver) Resolve(ctx context.Context, placements []Placement, mirrored bool) ([]Sticker, error) {
	stickers := make([]Sticker, 0, len(placements))
	loaded := make(map[int64]Sticker)

	opts := r.comp.Options()
	for _, p := range placements {
		asset, ok := loaded[p.StickerID]
		if !ok {
			path, err := r.lookup.StickerPath(ctx, p.StickerID)
			if err != nil {
				return nil, fmt.Errorf("sticker %d: %w", p.StickerID, err)
			}
			img, err := r.comp.Decode(ctx, File(path))
			if errors.Is(err, ErrTimeout) {
				return nil, fmt.Errorf("sticker %d: %w", p.StickerID, err)
			}
			if err != nil {
				return nil, fmt.Errorf("%w: sticker %d: %v", ErrAssetUnusable, p.StickerID, err)
			}
			asset = Sticker{Image: img}
			loaded[p.StickerID] = asset
		}

		b := asset.Image.Bounds()
		geom, err := ResolveGeometry(p, b.Dx(), b.Dy(), opts.Width, opts.Height, mirrored)
		if err != nil {
			return nil, err
		}
		stickers = append(stickers, Sticker{Image: asset.Image, Geometry: geom})
	}

	return stickers, nil
}
