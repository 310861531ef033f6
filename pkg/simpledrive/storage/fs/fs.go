package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/simple-drive/pkg/simpledrive"
	"github.com/tendant/simple-drive/pkg/simpledrive/presigned"
)

// Backend is a filesystem implementation of the simpledrive.BlobStore interface.
// Download URLs point at Handler and are signed with an HMAC secret.
type Backend struct {
	baseDir   string
	urlPrefix string
	urlTTL    time.Duration
	signer    *presigned.Signer
}

// Config options for the filesystem backend
type Config struct {
	BaseDir       string        // Base directory for storing files
	URLPrefix     string        // Public prefix Handler is mounted under, e.g. http://localhost:8080/blobs
	SigningSecret string        // HMAC secret for download URLs
	URLTTL        time.Duration // Lifetime of download URLs
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if config.SigningSecret == "" {
		return nil, errors.New("signing secret is required")
	}
	if config.URLTTL <= 0 {
		config.URLTTL = 15 * time.Minute
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
		urlTTL:    config.URLTTL,
		signer:    presigned.New(config.SigningSecret),
	}, nil
}

// UploadWithParams writes content to baseDir/params.ObjectKey
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params simpledrive.UploadParams) error {
	filePath, err := b.path(params.ObjectKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// GetDownloadURL returns a signed URL served by Handler
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string, downloadFilename string) (string, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", simpledrive.ErrBlobNotFound, objectKey)
	}

	u := url.URL{Path: "/" + objectKey}
	if downloadFilename != "" {
		u.RawQuery = url.Values{"filename": {downloadFilename}}.Encode()
	}
	signed, err := b.signer.Sign(http.MethodGet, u.String(), b.urlTTL)
	if err != nil {
		return "", err
	}
	return b.urlPrefix + signed, nil
}

// Download opens the stored file
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", simpledrive.ErrBlobNotFound, objectKey)
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes the file and any directories left empty
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath, err := b.path(objectKey)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", simpledrive.ErrBlobNotFound, objectKey)
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// Handler serves signed download URLs. Mount it with the URL prefix stripped,
// e.g. r.Mount("/blobs", http.StripPrefix("/blobs", backend.Handler())).
func (b *Backend) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if err := b.signer.ValidateRequest(r); err != nil {
			slog.Warn("Rejected blob download", "path", r.URL.Path, "error", err)
			http.Error(w, "Invalid or expired download URL", http.StatusForbidden)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/")
		reader, err := b.Download(r.Context(), key)
		if err != nil {
			if errors.Is(err, simpledrive.ErrBlobNotFound) {
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			slog.Error("Failed to open blob", "key", key, "error", err)
			http.Error(w, "Failed to read blob", http.StatusInternalServerError)
			return
		}
		defer reader.Close()

		if name := r.URL.Query().Get("filename"); name != "" {
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		}
		if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if _, err := io.Copy(w, reader); err != nil {
			slog.Error("Failed to stream blob", "key", key, "error", err)
		}
	})
}

// path resolves objectKey under baseDir, rejecting keys that escape it
func (b *Backend) path(objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.New("object key is required")
	}
	clean := filepath.Clean(filepath.FromSlash(objectKey))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %s", objectKey)
	}
	return filepath.Join(b.baseDir, clean), nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if filepath.Clean(dir) == filepath.Clean(b.baseDir) {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

var _ simpledrive.BlobStore = (*Backend)(nil)
