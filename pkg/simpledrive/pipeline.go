package simpledrive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/tendant/simple-drive/pkg/simpledrive/metrics"
	"github.com/tendant/simple-drive/pkg/simpledrive/objectkey"
)

// Metadata keys consumed when deriving file timestamps
const (
	MetaDateTimeOriginal = "DateTimeOriginal"
	MetaDateTime         = "DateTime"
)

const exifLayout = "2006:01:02 15:04:05"

// Upload is file content submitted for an item
type Upload struct {
	FileName string
	MimeType string
	Data     []byte
}

// ContentResult holds everything the pipeline derived from an upload
type ContentResult struct {
	ContentRef     string
	ThumbnailRef   string
	OriginalName   string
	Extension      string
	MimeType       string
	Size           int64
	Metadata       map[string]any
	ChecksumHash   string
	InternalTags   []string
	FileCreatedOn  time.Time
	FileModifiedOn time.Time
}

// Refs returns the blob keys written for the result
func (r *ContentResult) Refs() []string {
	refs := []string{r.ContentRef}
	if r.ThumbnailRef != "" {
		refs = append(refs, r.ThumbnailRef)
	}
	return refs
}

// PipelineConfig configures a Pipeline
type PipelineConfig struct {
	Backend        string
	Store          BlobStore
	Keys           objectkey.Generator
	Thumbnailer    Thumbnailer
	Extractor      MetadataExtractor
	StorageTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Pipeline turns uploaded bytes into stored blobs and derived attributes.
// Only the primary upload is fatal; thumbnail and metadata failures are
// logged and replaced by defaults.
type Pipeline struct {
	backend     string
	store       BlobStore
	keys        objectkey.Generator
	thumbnailer Thumbnailer
	extractor   MetadataExtractor
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline creates a pipeline. Store is required.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		backend:     cfg.Backend,
		store:       cfg.Store,
		keys:        cfg.Keys,
		thumbnailer: cfg.Thumbnailer,
		extractor:   cfg.Extractor,
		timeout:     cfg.StorageTimeout,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if p.keys == nil {
		p.keys = objectkey.NewFlatGenerator()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = func() time.Time { return time.Now().UTC() }
	}
	return p
}

// Process uploads the content, renders a thumbnail for images, extracts
// embedded metadata, computes the checksum and derives internal tags
func (p *Pipeline) Process(ctx context.Context, upload *Upload) (*ContentResult, error) {
	if upload == nil || upload.FileName == "" {
		return nil, validationError("uploaded file name is required")
	}

	ext := strings.ToLower(filepath.Ext(upload.FileName))
	mimeType := detectMimeType(upload.MimeType, upload.Data)

	contentRef := p.keys.ContentKey(uuid.New(), ext)
	if err := p.upload(ctx, contentRef, mimeType, upload.Data); err != nil {
		metrics.PipelineFailures.WithLabelValues("upload").Inc()
		return nil, err
	}

	result := &ContentResult{
		ContentRef:   contentRef,
		OriginalName: upload.FileName,
		Extension:    ext,
		MimeType:     mimeType,
		Size:         int64(len(upload.Data)),
		ChecksumHash: checksum(upload.Data),
		InternalTags: InternalTags(mimeType, ext),
	}

	if Category(mimeType, ext) == CategoryImage {
		result.ThumbnailRef = p.thumbnail(ctx, upload.Data, mimeType)
	}

	result.Metadata = p.extractMetadata(upload.Data, mimeType)
	now := p.now()
	result.FileCreatedOn = firstTime(now, result.Metadata, MetaDateTimeOriginal, MetaDateTime)
	result.FileModifiedOn = firstTime(now, result.Metadata, MetaDateTime, MetaDateTimeOriginal)

	return result, nil
}

// thumbnail renders and uploads a thumbnail, returning its key or "" on any failure
func (p *Pipeline) thumbnail(ctx context.Context, data []byte, mimeType string) string {
	if p.thumbnailer == nil {
		return ""
	}
	thumb, err := p.thumbnailer.Thumbnail(data, mimeType)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues("thumbnail").Inc()
		p.logger.Warn("Failed to generate thumbnail", "mime_type", mimeType, "error", err)
		return ""
	}
	key := p.keys.ThumbnailKey(uuid.New())
	if err := p.upload(ctx, key, "image/jpeg", thumb); err != nil {
		metrics.PipelineFailures.WithLabelValues("thumbnail").Inc()
		p.logger.Warn("Failed to upload thumbnail", "key", key, "error", err)
		return ""
	}
	return key
}

func (p *Pipeline) extractMetadata(data []byte, mimeType string) map[string]any {
	if p.extractor == nil || !p.extractor.Supports(mimeType) {
		return map[string]any{}
	}
	md, err := p.extractor.Extract(data)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues("metadata").Inc()
		p.logger.Warn("Failed to extract metadata", "mime_type", mimeType, "error", err)
		return map[string]any{}
	}
	if md == nil {
		md = map[string]any{}
	}
	return md
}

// Discard deletes blobs written by a result that was never persisted
func (p *Pipeline) Discard(ctx context.Context, result *ContentResult) {
	if result == nil {
		return
	}
	for _, ref := range result.Refs() {
		if err := p.DeleteBlob(ctx, ref); err != nil {
			p.logger.Warn("Failed to discard unreferenced blob", "key", ref, "error", err)
		}
	}
}

// DeleteBlob removes a blob, wrapping failures as StorageError
func (p *Pipeline) DeleteBlob(ctx context.Context, key string) error {
	ctx, cancel := p.storageContext(ctx)
	defer cancel()
	if err := p.store.Delete(ctx, key); err != nil {
		return &StorageError{Backend: p.backend, Key: key, Op: "delete", Err: err}
	}
	return nil
}

// SignedURL returns a fresh time-limited download URL for a blob
func (p *Pipeline) SignedURL(ctx context.Context, key, downloadFilename string) (string, error) {
	ctx, cancel := p.storageContext(ctx)
	defer cancel()
	url, err := p.store.GetDownloadURL(ctx, key, downloadFilename)
	if err != nil {
		return "", &StorageError{Backend: p.backend, Key: key, Op: "sign", Err: err}
	}
	return url, nil
}

func (p *Pipeline) upload(ctx context.Context, key, mimeType string, data []byte) error {
	ctx, cancel := p.storageContext(ctx)
	defer cancel()
	params := UploadParams{ObjectKey: key, MimeType: mimeType, Size: int64(len(data))}
	if err := p.store.UploadWithParams(ctx, bytes.NewReader(data), params); err != nil {
		return &StorageError{Backend: p.backend, Key: key, Op: "upload", Err: err}
	}
	return nil
}

func (p *Pipeline) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout > 0 {
		return context.WithTimeout(ctx, p.timeout)
	}
	return ctx, func() {}
}

// detectMimeType keeps a declared type and sniffs the content otherwise
func detectMimeType(declared string, data []byte) string {
	declared = normalizeMimeType(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return normalizeMimeType(mimetype.Detect(data).String())
}

func normalizeMimeType(s string) string {
	base, _, _ := strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// firstTime returns the first parseable timestamp among keys, or fallback
func firstTime(fallback time.Time, md map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		switch v := md[key].(type) {
		case time.Time:
			if !v.IsZero() {
				return v.UTC()
			}
		case string:
			for _, layout := range []string{time.RFC3339, exifLayout} {
				if t, err := time.Parse(layout, v); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return fallback
}
