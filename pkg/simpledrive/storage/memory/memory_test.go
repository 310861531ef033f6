package memory_test

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive"
	memorystorage "github.com/tendant/simple-drive/pkg/simpledrive/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New(memorystorage.WithURLTTL(time.Minute))
	ctx := context.Background()
	testKey := "3f1c.pdf"
	testData := "Hello, World! This is test data."

	t.Run("UploadWithParams", func(t *testing.T) {
		err := backend.UploadWithParams(ctx, strings.NewReader(testData), simpledrive.UploadParams{
			ObjectKey: testKey,
			MimeType:  "application/pdf",
		})
		require.NoError(t, err)
		assert.True(t, backend.Has(testKey))
		assert.Equal(t, "application/pdf", backend.MimeType(testKey))
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("GetDownloadURL", func(t *testing.T) {
		raw, err := backend.GetDownloadURL(ctx, testKey, "report.pdf")
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "memory", u.Scheme)
		assert.Equal(t, "report.pdf", u.Query().Get("filename"))
		assert.NotEmpty(t, u.Query().Get("expires"))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))
		assert.False(t, backend.Has(testKey))

		err := backend.Delete(ctx, testKey)
		assert.ErrorIs(t, err, simpledrive.ErrBlobNotFound)
	})

	t.Run("Missing object", func(t *testing.T) {
		_, err := backend.Download(ctx, "missing")
		assert.ErrorIs(t, err, simpledrive.ErrBlobNotFound)

		_, err = backend.GetDownloadURL(ctx, "missing", "")
		assert.ErrorIs(t, err, simpledrive.ErrBlobNotFound)
	})
}

func TestMemoryBackendDefaultMimeType(t *testing.T) {
	backend := memorystorage.New()
	err := backend.UploadWithParams(context.Background(), strings.NewReader("x"), simpledrive.UploadParams{ObjectKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", backend.MimeType("k"))
	assert.Equal(t, []string{"k"}, backend.Keys())
}
