package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/americavendas/marketplace/internal/pkg/config"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "listings/u1/l1/1-0.jpg", want: "listings/u1/l1/1-0.jpg"},
		{in: "/listings//a.png", want: "listings/a.png"},
		{in: "listings\\a.png", want: "listings/a.png"},
		{in: "../etc/passwd", want: "etc/passwd"},
		{in: "", wantErr: true},
		{in: "/", wantErr: true},
	}

	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestLocalStorePutDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "listings/u1/l1/a.jpg", strings.NewReader("data"), 4, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/listings/u1/l1/a.jpg", url)

	raw, err := os.ReadFile(filepath.Join(dir, "listings", "u1", "l1", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(raw))

	require.NoError(t, store.Delete(ctx, "listings/u1/l1/a.jpg", "listings/missing.jpg"))
	_, err = os.Stat(filepath.Join(dir, "listings", "u1", "l1", "a.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewSelectsDriver(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Driver: "local", LocalDir: t.TempDir(), PublicBaseURL: "/uploads"}, true)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = New(context.Background(), config.StorageConfig{Driver: "ftp"}, true)
	assert.Error(t, err)
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com",
		publicBaseURL(config.StorageConfig{PublicBaseURL: "https://cdn.example.com/", Bucket: "b"}))
	assert.Equal(t, "https://x.supabase.co/storage/v1/s3/listing-images",
		publicBaseURL(config.StorageConfig{PublicBaseURL: "/uploads", EndpointURL: "https://x.supabase.co/storage/v1/s3", Bucket: "listing-images"}))
	assert.Equal(t, "https://b.s3.sa-east-1.amazonaws.com",
		publicBaseURL(config.StorageConfig{Bucket: "b", Region: "sa-east-1"}))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor(".JPG"))
	assert.Equal(t, "image/webp", ContentTypeFor(".webp"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor(".exe"))
}
