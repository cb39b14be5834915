package compositor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/gif"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	ctx := context.Background()
	c := New(DefaultOptions())
	a := NewAssembler(c)
	frameA := pngDataURL(t, gradientImage(64, 48))

	t.Run("two identical frames", func(t *testing.T) {
		var buf bytes.Buffer
		first, err := a.Assemble(ctx, &buf, []Source{DataURL(frameA), DataURL(frameA)}, 200*time.Millisecond, nil)
		require.NoError(t, err)
		require.NotNil(t, first)

		g, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Len(t, g.Image, 2)
		assert.Equal(t, 0, g.LoopCount)
		assert.Equal(t, []int{20, 20}, g.Delay)
		assert.Equal(t, 640, g.Config.Width)
		assert.Equal(t, 480, g.Config.Height)

		src, err := c.Decode(ctx, DataURL(frameA))
		require.NoError(t, err)
		single, err := c.Composite(ctx, src, nil)
		require.NoError(t, err)
		want := Palettize(single)

		assert.Equal(t, want.Pix, g.Image[0].Pix)
		assert.Equal(t, want.Pix, g.Image[1].Pix)
		assert.Equal(t, single.Pix, c.Contain(src).Pix)
	})

	t.Run("frame order is preserved", func(t *testing.T) {
		frameB := pngDataURL(t, solidImage(64, 48, red))
		var buf bytes.Buffer
		_, err := a.Assemble(ctx, &buf, []Source{DataURL(frameA), DataURL(frameB), DataURL(frameA)}, 300*time.Millisecond, nil)
		require.NoError(t, err)

		g, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Len(t, g.Image, 3)
		assert.Equal(t, g.Image[0].Pix, g.Image[2].Pix)
		assert.NotEqual(t, g.Image[0].Pix, g.Image[1].Pix)
	})

	t.Run("stickers apply to every frame", func(t *testing.T) {
		g0, err := ResolveGeometry(Placement{X: 0.5, Y: 0.5, Scale: 0.25}, 10, 10, 640, 480, false)
		require.NoError(t, err)
		stickers := []Sticker{{Image: solidImage(10, 10, red), Geometry: g0}}

		var buf bytes.Buffer
		first, err := a.Assemble(ctx, &buf, []Source{DataURL(frameA), DataURL(frameA)}, 0, stickers)
		require.NoError(t, err)
		nrgba, ok := first.(*image.NRGBA)
		require.True(t, ok)
		assertColor(t, red, rgbaAt(nrgba, 320, 240))

		g, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, []int{20, 20}, g.Delay, "zero delay selects the default")
		for i, frame := range g.Image {
			r, gr, b, _ := frame.At(320, 240).RGBA()
			assert.Greater(t, r>>8, uint32(200), "frame %d", i)
			assert.Less(t, gr>>8, uint32(60), "frame %d", i)
			assert.Less(t, b>>8, uint32(60), "frame %d", i)
		}
	})

	t.Run("delay is clamped", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := a.Assemble(ctx, &buf, []Source{DataURL(frameA), DataURL(frameA)}, 5*time.Second, nil)
		require.NoError(t, err)

		g, err := gif.DecodeAll(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, []int{100, 100}, g.Delay)
	})

	t.Run("single frame is rejected before writing", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := a.Assemble(ctx, &buf, []Source{DataURL(frameA)}, 200*time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Zero(t, buf.Len())
	})

	t.Run("bad frame aborts", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := a.Assemble(ctx, &buf, []Source{DataURL(frameA), DataURL("data:image/png;base64,AAAA")}, 200*time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrDecode)
		assert.True(t, IsBadInput(err))
	})

	t.Run("writer failure aborts", func(t *testing.T) {
		_, err := a.Assemble(ctx, failingWriter{}, []Source{DataURL(frameA), DataURL(frameA)}, 200*time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrEncode)
	})
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}
