package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostSignsBody(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New("shared-secret", time.Second)
	err := client.Post(context.Background(), srv.URL, map[string]string{"type": "bayat", "id": "r1"})
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("shared-secret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestPostWithoutSecretOmitsSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := New("", time.Second)
	require.NoError(t, client.Post(context.Background(), srv.URL, map[string]string{"event": "module_enrollment"}))
}

func TestPostRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New("", time.Second)
	err := client.Post(context.Background(), srv.URL, struct{}{})
	assert.Error(t, err)
}

func TestPostRequiresURL(t *testing.T) {
	client := New("", time.Second)
	assert.Error(t, client.Post(context.Background(), "", struct{}{}))
}
