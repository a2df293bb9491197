package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore saves objects under a directory on disk (default "audio").
// Public URLs are built from BaseURL, which should point at a static file server for Dir.
type LocalStore struct {
	Dir     string
	BaseURL string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir, baseURL string) *LocalStore {
	if dir == "" {
		dir = "audio"
	}
	return &LocalStore{Dir: dir, BaseURL: baseURL}
}

func (s *LocalStore) Get(ctx context.Context, locator string) ([]byte, error) {
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(locator)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", locator, err)
	}
	return data, nil
}

// Put writes data to {dir}/{key}. contentType is not recorded on disk.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	p := filepath.Join(s.Dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return Object{}, err
	}

	return Object{Key: key, PublicURL: s.publicURL(key, p)}, nil
}

func (s *LocalStore) Exists(ctx context.Context, locator string) (bool, error) {
	p, err := s.path(locator)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *LocalStore) path(locator string) (string, error) {
	key, err := cleanKey(locator)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, filepath.FromSlash(key)), nil
}

// publicURL falls back to a file:// URL when no BaseURL is configured.
func (s *LocalStore) publicURL(key, filePath string) string {
	if s.BaseURL == "" {
		abs, err := filepath.Abs(filePath)
		if err != nil {
			abs = filePath
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + path.Clean(key)
}
