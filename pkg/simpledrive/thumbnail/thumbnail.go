// Package thumbnail renders bounded JPEG previews of uploaded images.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

const (
	DefaultSize    = 200
	DefaultQuality = 70
)

var ErrEmptyImage = errors.New("empty image")

// Generator scales images to fit a Size x Size box, preserving aspect ratio
type Generator struct {
	Size    uint
	Quality int
}

// New returns a Generator with the default box and JPEG quality
func New() *Generator {
	return &Generator{Size: DefaultSize, Quality: DefaultQuality}
}

// Thumbnail decodes data and encodes the scaled image as JPEG. Images
// already inside the box are re-encoded without upscaling.
func (g *Generator) Thumbnail(data []byte, mimeType string) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", mimeType, err)
	}

	size := g.Size
	if size == 0 {
		size = DefaultSize
	}
	quality := g.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	thumb := resize.Thumbnail(size, size, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail from %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
