package objectkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key generation strategies
type Generator interface {
	// ContentKey creates the key of an uploaded original. extension is
	// lower-cased and includes the leading dot, or is empty.
	ContentKey(blobID uuid.UUID, extension string) string

	// ThumbnailKey creates the key of a rendered JPEG thumbnail
	ThumbnailKey(blobID uuid.UUID) string
}

// FlatGenerator stores every blob at the bucket root:
// originals as <uuid><ext>, thumbnails as thumbnail-<uuid>.jpg
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) ContentKey(blobID uuid.UUID, extension string) string {
	return blobID.String() + sanitizeExtension(extension)
}

func (g *FlatGenerator) ThumbnailKey(blobID uuid.UUID) string {
	return fmt.Sprintf("thumbnail-%s.jpg", blobID)
}

// ShardedGenerator provides Git-style sharded keys with originals and
// thumbnails separated:
// Original:  originals/ab/cd1234ef5678.pdf
// Thumbnail: thumbnails/ab/cd1234ef5678.jpg
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) ContentKey(blobID uuid.UUID, extension string) string {
	shard, rest := g.split(blobID)
	return fmt.Sprintf("originals/%s/%s%s", shard, rest, sanitizeExtension(extension))
}

func (g *ShardedGenerator) ThumbnailKey(blobID uuid.UUID) string {
	shard, rest := g.split(blobID)
	return fmt.Sprintf("thumbnails/%s/%s.jpg", shard, rest)
}

func (g *ShardedGenerator) split(blobID uuid.UUID) (string, string) {
	id := strings.ReplaceAll(blobID.String(), "-", "")
	n := g.ShardLength
	if n <= 0 || n >= len(id) {
		n = 2
	}
	return id[:n], id[n:]
}

// New returns the generator for a layout name: "flat" (default) or "sharded"
func New(layout string) (Generator, error) {
	switch layout {
	case "", "flat":
		return NewFlatGenerator(), nil
	case "sharded":
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key layout: %s", layout)
	}
}

// sanitizeExtension drops characters that are unsafe in keys and paths
func sanitizeExtension(ext string) string {
	if ext == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range strings.ToLower(ext) {
		switch {
		case i == 0 && r == '.':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	if b.Len() <= 1 {
		return ""
	}
	out := b.String()
	if !strings.HasPrefix(out, ".") {
		out = "." + out
	}
	return out
}
