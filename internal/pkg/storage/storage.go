package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/americavendas/marketplace/internal/pkg/config"
)

// Store is the blob storage used for listing images.
type Store interface {
	// Put writes an object and returns its public URL.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// Delete removes objects. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// URL returns the public URL of a key.
	URL(key string) string
}

// New builds the configured store.
func New(ctx context.Context, cfg config.StorageConfig, dev bool) (Store, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Store(ctx, cfg, dev)
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// CleanKey normalizes an object key and rejects path traversal.
func CleanKey(key string) (string, error) {
	k := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(key, "\\", "/")), "/")
	if k == "" || k == "." || strings.HasPrefix(k, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return k, nil
}

// ContentTypeFor returns the MIME type based on file extension
func ContentTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
