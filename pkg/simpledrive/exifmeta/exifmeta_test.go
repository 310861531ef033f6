package exifmeta_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive/exifmeta"
)

// exifJPEG returns a JPEG prefix carrying a single IFD0 DateTime tag
func exifJPEG(dateTime string) []byte {
	value := append([]byte(dateTime), 0)

	var tiffData bytes.Buffer
	le := binary.LittleEndian
	tiffData.WriteString("II")
	binary.Write(&tiffData, le, uint16(42))
	binary.Write(&tiffData, le, uint32(8))
	binary.Write(&tiffData, le, uint16(1))      // entry count
	binary.Write(&tiffData, le, uint16(0x0132)) // DateTime
	binary.Write(&tiffData, le, uint16(2))      // ASCII
	binary.Write(&tiffData, le, uint32(len(value)))
	binary.Write(&tiffData, le, uint32(8+2+12+4))
	binary.Write(&tiffData, le, uint32(0)) // no next IFD
	tiffData.Write(value)

	payload := append([]byte("Exif\x00\x00"), tiffData.Bytes()...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func TestSupports(t *testing.T) {
	e := exifmeta.New()
	assert.True(t, e.Supports("image/jpeg"))
	assert.True(t, e.Supports("IMAGE/TIFF"))
	assert.False(t, e.Supports("image/png"))
	assert.False(t, e.Supports("application/pdf"))
}

func TestExtractDateTime(t *testing.T) {
	fields, err := exifmeta.New().Extract(exifJPEG("2021:03:04 05:06:07"))
	require.NoError(t, err)

	assert.Equal(t, "2021:03:04 05:06:07", fields["DateTime"])
	taken, ok := fields["DateTimeOriginal"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2021, taken.Year())
	assert.Equal(t, time.March, taken.Month())
	assert.Equal(t, 7, taken.Second())
}

func TestExtractWithoutExif(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))

	_, err := exifmeta.New().Extract(buf.Bytes())
	assert.Error(t, err)
}
