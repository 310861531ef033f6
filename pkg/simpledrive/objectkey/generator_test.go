package objectkey

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()
	blobID := uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

	tests := []struct {
		name      string
		extension string
		expected  string
	}{
		{name: "with extension", extension: ".pdf", expected: "987fcdeb-51a2-43d1-9f12-345678901234.pdf"},
		{name: "upper case extension", extension: ".JPG", expected: "987fcdeb-51a2-43d1-9f12-345678901234.jpg"},
		{name: "without dot", extension: "png", expected: "987fcdeb-51a2-43d1-9f12-345678901234.png"},
		{name: "empty extension", extension: "", expected: "987fcdeb-51a2-43d1-9f12-345678901234"},
		{name: "path characters stripped", extension: "./../x", expected: "987fcdeb-51a2-43d1-9f12-345678901234.x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gen.ContentKey(blobID, tt.extension))
		})
	}

	assert.Equal(t, "thumbnail-987fcdeb-51a2-43d1-9f12-345678901234.jpg", gen.ThumbnailKey(blobID))
}

func TestShardedGenerator(t *testing.T) {
	gen := NewShardedGenerator()
	blobID := uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")

	assert.Equal(t, "originals/98/7fcdeb51a243d19f12345678901234.pdf", gen.ContentKey(blobID, ".pdf"))
	assert.Equal(t, "thumbnails/98/7fcdeb51a243d19f12345678901234.jpg", gen.ThumbnailKey(blobID))

	gen.ShardLength = 4
	assert.Equal(t, "originals/987f/cdeb51a243d19f12345678901234", gen.ContentKey(blobID, ""))
}

func TestNew(t *testing.T) {
	gen, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &FlatGenerator{}, gen)

	gen, err = New("sharded")
	require.NoError(t, err)
	assert.IsType(t, &ShardedGenerator{}, gen)

	_, err = New("tenant")
	assert.Error(t, err)
}
