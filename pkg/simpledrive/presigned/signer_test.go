package presigned_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-drive/pkg/simpledrive/presigned"
)

func TestSignAndValidate(t *testing.T) {
	signer := presigned.New("secret")

	signed, err := signer.Sign(http.MethodGet, "/blobs/ab.pdf?filename=report.pdf", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "signature=")
	assert.Contains(t, signed, "filename=report.pdf")

	req := httptest.NewRequest(http.MethodGet, signed, nil)
	assert.NoError(t, signer.ValidateRequest(req))
}

func TestValidateRejectsTampering(t *testing.T) {
	signer := presigned.New("secret")
	signed, err := signer.Sign(http.MethodGet, "/blobs/ab.pdf?filename=report.pdf", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name string
		url  string
		want error
	}{
		{name: "other path", url: strings.Replace(signed, "ab.pdf", "cd.pdf", 1), want: presigned.ErrInvalidSignature},
		{name: "other filename", url: strings.Replace(signed, "report.pdf", "x.pdf", 1), want: presigned.ErrInvalidSignature},
		{name: "missing signature", url: "/blobs/ab.pdf?expires=99999999999", want: presigned.ErrMissingSignature},
		{name: "missing expires", url: "/blobs/ab.pdf?signature=abc", want: presigned.ErrMissingExpiration},
		{name: "bad expires", url: "/blobs/ab.pdf?signature=abc&expires=soon", want: presigned.ErrInvalidExpiration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			err := signer.ValidateRequest(req)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, presigned.IsAuthError(err))
		})
	}

	t.Run("other method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, signed, nil)
		assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrInvalidSignature)
	})

	t.Run("other secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, signed, nil)
		assert.ErrorIs(t, presigned.New("other").ValidateRequest(req), presigned.ErrInvalidSignature)
	})
}

func TestValidateExpired(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	signer := presigned.New("secret").WithClock(func() time.Time { return issued })

	signed, err := signer.Sign(http.MethodGet, "/blobs/ab.pdf", time.Minute)
	require.NoError(t, err)

	signer.WithClock(func() time.Time { return issued.Add(2 * time.Minute) })
	req := httptest.NewRequest(http.MethodGet, signed, nil)
	assert.ErrorIs(t, signer.ValidateRequest(req), presigned.ErrExpired)
}

func TestSignWithoutSecret(t *testing.T) {
	_, err := presigned.New("").Sign(http.MethodGet, "/blobs/a", time.Minute)
	assert.ErrorIs(t, err, presigned.ErrNoSecretKey)
}
