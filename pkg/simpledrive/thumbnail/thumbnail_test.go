package thumbnail_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive/thumbnail"
)

func samplePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailFitsBox(t *testing.T) {
	out, err := thumbnail.New().Thumbnail(samplePNG(t, 800, 400), "image/png")
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestThumbnailDoesNotUpscale(t *testing.T) {
	out, err := thumbnail.New().Thumbnail(samplePNG(t, 50, 40), "image/png")
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	g := thumbnail.New()

	_, err := g.Thumbnail(nil, "image/png")
	assert.ErrorIs(t, err, thumbnail.ErrEmptyImage)

	_, err = g.Thumbnail([]byte("not an image"), "image/png")
	assert.Error(t, err)
}
