package simpledrive

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for storage backends holding item content
// and thumbnails
type BlobStore interface {
	// UploadWithParams uploads content under params.ObjectKey
	UploadWithParams(ctx context.Context, reader io.Reader, params UploadParams) error

	// GetDownloadURL returns a time-limited URL for downloading content
	GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error)

	// Download downloads content directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete deletes content
	Delete(ctx context.Context, objectKey string) error
}

// UploadParams contains parameters for uploading an object
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Size      int64
}

// Repository defines the interface for item persistence.
// Lookups of unknown items return an error wrapping ErrNotFound.
type Repository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// GetItemBySharedLink returns the item currently carrying token,
	// regardless of its expiration date
	GetItemBySharedLink(ctx context.Context, token string) (*Item, error)

	// ListItems returns the page of items matching query and the total
	// number of matches before pagination
	ListItems(ctx context.Context, query ItemQuery) ([]*Item, int, error)
}

// ItemQuery is a repository-level listing query. VisibleTo is always applied.
type ItemQuery struct {
	VisibleTo      uuid.UUID
	ParentFolderID *uuid.UUID
	Search         string
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Type           ItemType
	Owner          *uuid.UUID
	SortBy         string
	SortOrder      SortOrder
	Limit          int
	Offset         int
}

// EventSink defines the interface for item lifecycle events
type EventSink interface {
	// ItemCreated is fired when an item is created
	ItemCreated(ctx context.Context, item *Item) error

	// ItemUpdated is fired after any persisted mutation
	ItemUpdated(ctx context.Context, item *Item) error

	// ItemDeleted is fired when an item is hard deleted
	ItemDeleted(ctx context.Context, itemID uuid.UUID) error
}

// Thumbnailer renders a JPEG thumbnail of an image
type Thumbnailer interface {
	Thumbnail(data []byte, mimeType string) ([]byte, error)
}

// ThumbnailFunc adapts a function to the Thumbnailer interface
type ThumbnailFunc func(data []byte, mimeType string) ([]byte, error)

func (f ThumbnailFunc) Thumbnail(data []byte, mimeType string) ([]byte, error) {
	return f(data, mimeType)
}

// MetadataExtractor reads embedded metadata (EXIF and similar) from content.
// Timestamps are reported under the keys DateTimeOriginal and DateTime.
type MetadataExtractor interface {
	// Supports returns true if the extractor understands the MIME type
	Supports(mimeType string) bool

	// Extract returns the embedded metadata
	Extract(data []byte) (map[string]any, error)
}

// FolderCache caches folder records used when resolving full paths
type FolderCache interface {
	Get(id uuid.UUID) (*Item, bool)
	Add(item *Item)
	Remove(id uuid.UUID)
}
