package fs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive"
)

func newBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	tmp := t.TempDir()
	b, err := New(Config{BaseDir: tmp, URLPrefix: "http://drive.test/blobs/", SigningSecret: "secret", URLTTL: time.Minute})
	require.NoError(t, err)
	return b, tmp
}

func TestFSBackend_BasicOps(t *testing.T) {
	backend, tmp := newBackend(t)
	ctx := context.Background()
	key := "originals/ab/cdef.txt"
	data := []byte("hello fs")

	err := backend.UploadWithParams(ctx, bytes.NewReader(data), simpledrive.UploadParams{ObjectKey: key, MimeType: "text/plain"})
	require.NoError(t, err)

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(tmp, "originals"))
	assert.True(t, os.IsNotExist(err), "empty shard directories should be removed")

	assert.ErrorIs(t, backend.Delete(ctx, key), simpledrive.ErrBlobNotFound)
	_, err = backend.Download(ctx, key)
	assert.ErrorIs(t, err, simpledrive.ErrBlobNotFound)
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	backend, _ := newBackend(t)
	err := backend.UploadWithParams(context.Background(), strings.NewReader("x"), simpledrive.UploadParams{ObjectKey: "../outside.txt"})
	assert.Error(t, err)
}

func TestFSBackend_SignedDownload(t *testing.T) {
	backend, _ := newBackend(t)
	ctx := context.Background()
	key := "3f1c.pdf"
	require.NoError(t, backend.UploadWithParams(ctx, strings.NewReader("%PDF-1.4"), simpledrive.UploadParams{ObjectKey: key}))

	raw, err := backend.GetDownloadURL(ctx, key, "report.pdf")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "http://drive.test/blobs/3f1c.pdf?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)

	handler := http.StripPrefix("/blobs", backend.Handler())

	t.Run("valid", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "%PDF-1.4", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.pdf")
	})

	t.Run("tampered", func(t *testing.T) {
		rec := httptest.NewRecorder()
		tampered := strings.Replace(u.RequestURI(), "report.pdf", "other.pdf", 1)
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tampered, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unsigned", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blobs/3f1c.pdf", nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := backend.GetDownloadURL(ctx, "missing.pdf", "")
		assert.ErrorIs(t, err, simpledrive.ErrBlobNotFound)
	})
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{BaseDir: t.TempDir()})
	assert.Error(t, err)
}
