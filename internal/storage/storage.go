package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/camagru/camagru/internal/config"
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("object not found")

// Key prefixes for stored files
const (
	PhotosPrefix     = "photos"
	ThumbnailsPrefix = "thumbnails"

	// PublicPrefix is the URL path stored files are served under
	PublicPrefix = "/uploads/"
)

// Sink stores encoded images. Delete must not fail when the key is absent.
type Sink interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New creates the sink selected by cfg.Driver
func New(cfg config.StorageConfig) (Sink, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocal(cfg.LocalDir)
	case "minio":
		return NewObject(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// PhotoKey returns the key of a primary photo file
func PhotoKey(name string) string {
	return path.Join(PhotosPrefix, name)
}

// ThumbnailKey returns the key of the thumbnail belonging to a photo file name
func ThumbnailKey(name string) string {
	return path.Join(ThumbnailsPrefix, "thumb_"+name)
}

// PublicPath converts a key into the path stored in the database
func PublicPath(key string) string {
	return PublicPrefix + strings.TrimPrefix(key, "/")
}

// KeyFromPath converts a stored public path back into a key.
// Paths outside PublicPrefix and keys escaping the root are rejected.
func KeyFromPath(p string) (string, bool) {
	if !strings.HasPrefix(p, PublicPrefix) {
		return "", false
	}
	key := path.Clean(strings.TrimPrefix(p, PublicPrefix))
	if key == "." || key == ".." || strings.HasPrefix(key, "../") || strings.HasPrefix(key, "/") {
		return "", false
	}
	return key, true
}

// ContentType returns the content type based on file extension
func ContentType(name string) string {
	return getContentType(name)
}

func getContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
