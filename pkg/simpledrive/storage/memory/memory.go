package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-drive/pkg/simpledrive"
)

type object struct {
	data     []byte
	mimeType string
}

// Backend is an in-memory implementation of the simpledrive.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	urlTTL  time.Duration
	now     func() time.Time
}

// Option configures a Backend
type Option func(*Backend)

// WithURLTTL sets the lifetime advertised by download URLs
func WithURLTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.urlTTL = ttl
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{
		objects: make(map[string]object),
		urlTTL:  15 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// UploadWithParams stores content under params.ObjectKey
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params simpledrive.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = object{data: data, mimeType: mimeType}
	return nil
}

// GetDownloadURL returns a memory:// URL carrying an expiry. The URL is only
// meaningful to tests and local development.
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	b.mu.RLock()
	_, exists := b.objects[objectKey]
	b.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("%w: %s", simpledrive.ErrBlobNotFound, objectKey)
	}

	q := url.Values{}
	q.Set("expires", fmt.Sprint(b.now().Add(b.urlTTL).Unix()))
	if downloadFilename != "" {
		q.Set("filename", downloadFilename)
	}
	return "memory://" + url.PathEscape(objectKey) + "?" + q.Encode(), nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, fmt.Errorf("%w: %s", simpledrive.ErrBlobNotFound, objectKey)
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return fmt.Errorf("%w: %s", simpledrive.ErrBlobNotFound, objectKey)
	}

	delete(b.objects, objectKey)
	return nil
}

// Has reports whether objectKey is stored
func (b *Backend) Has(objectKey string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[objectKey]
	return ok
}

// MimeType returns the content type recorded at upload
func (b *Backend) MimeType(objectKey string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.objects[objectKey].mimeType
}

// Keys returns the stored keys in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ simpledrive.BlobStore = (*Backend)(nil)
