package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name         string
		w, h, size   int
		wantW, wantH int
	}{
		{"canvas", 640, 480, 100, 100, 75},
		{"portrait", 300, 600, 100, 50, 100},
		{"square", 250, 250, 100, 100, 100},
		{"small source is upscaled", 50, 20, 100, 100, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Thumbnail(gradientImage(tt.w, tt.h), tt.size)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestCompositorThumbnailUsesConfiguredSize(t *testing.T) {
	opts := DefaultOptions()
	opts.ThumbnailSize = 64
	out := New(opts).Thumbnail(gradientImage(640, 480))
	assert.Equal(t, 64, out.Bounds().Dx())
	assert.Equal(t, 48, out.Bounds().Dy())
}
