package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/config"
)

// ErrNotFound indicates no stored object matches the given key.
var ErrNotFound = errors.New("object not found")

// ErrUnsupportedMediaType indicates the upload is not an accepted image.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Object references one stored image.
type Object struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Store is the image-storage boundary: upload bytes, get back a hosted
// reference, delete by key.
type Store interface {
	Upload(ctx context.Context, data []byte, mimeType string) (Object, error)
	Delete(ctx context.Context, key string) error
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DiskStore keeps uploads in a local directory, served under /files/.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the backing directory if needed.
func NewDiskStore(cfg config.StorageConfig) (*DiskStore, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %q: %w", cfg.Directory, err)
	}
	return &DiskStore{
		dir:     cfg.Directory,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// Dir returns the backing directory for static serving.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Upload writes the image under a fresh key.
func (s *DiskStore) Upload(ctx context.Context, data []byte, mimeType string) (Object, error) {
	ext, ok := imageExtensions[strings.ToLower(mimeType)]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mimeType)
	}

	key := uuid.NewString() + ext
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Object{}, fmt.Errorf("write object %q: %w", key, err)
	}

	return Object{URL: s.baseURL + "/files/" + key, Key: key}, nil
}

// Delete removes the object with the given key.
func (s *DiskStore) Delete(ctx context.Context, key string) error {
	// Keys never contain path separators; reject anything that does.
	if key == "" || filepath.Base(key) != key {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	if err := os.Remove(filepath.Join(s.dir, key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}
