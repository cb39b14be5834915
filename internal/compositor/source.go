package compositor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var dataURLPrefix = regexp.MustCompile(`^data:image/[A-Za-z0-9.+-]+;base64,`)

// Source is one input frame: either a base64 data URL or a file on disk
type Source struct {
	dataURL string
	path    string
}

// DataURL wraps a client supplied data URL (the prefix is optional)
func DataURL(s string) Source {
	return Source{dataURL: s}
}

// File wraps an image file on disk
func File(path string) Source {
	return Source{path: path}
}

func (s Source) String() string {
	if s.path != "" {
		return s.path
	}
	return "data-url"
}

// Decode loads and decodes a source, enforcing size and pixel limits.
// EXIF orientation is applied.
func (c *Compositor) Decode(ctx context.Context, src Source) (image.Image, error) {
	raw, err := c.readSource(src)
	if err != nil {
		return nil, err
	}

	var img image.Image
	err = c.bounded(ctx, func() error {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > c.opts.MaxPixels {
			return fmt.Errorf("%w: image is %dx%d", ErrInvalidInput, cfg.Width, cfg.Height)
		}

		decoded, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		img = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (c *Compositor) readSource(src Source) ([]byte, error) {
	if src.path != "" {
		info, err := os.Stat(src.path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", src.path, err)
		}
		if info.Size() > int64(c.opts.MaxImageBytes) {
			return nil, fmt.Errorf("%w: %s is too large", ErrInvalidInput, src.path)
		}
		data, err := os.ReadFile(src.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.path, err)
		}
		return data, nil
	}

	payload := strings.TrimSpace(src.dataURL)
	if payload == "" {
		return nil, fmt.Errorf("%w: missing image data", ErrInvalidInput)
	}
	if loc := dataURLPrefix.FindStringIndex(payload); loc != nil {
		payload = payload[loc[1]:]
	} else if strings.HasPrefix(payload, "data:") {
		return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidInput)
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > c.opts.MaxImageBytes {
		return nil, fmt.Errorf("%w: image data too large", ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: image data is not valid base64", ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: missing image data", ErrInvalidInput)
	}
	return data, nil
}
