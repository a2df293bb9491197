// Package storage defines the object storage collaborator used for audio segments and merged assets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned (wrapped) when a locator does not resolve to an object.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty or climb out of the store root.
// No object can ever exist under such a key.
var ErrInvalidKey = errors.New("invalid object key")

// Object is a persisted object and the public locator it can be fetched from.
type Object struct {
	Key       string
	PublicURL string
}

// ObjectStore reads and writes opaque byte objects.
type ObjectStore interface {
	// Get returns the object's bytes, or an error wrapping ErrNotFound when it does not exist.
	Get(ctx context.Context, locator string) ([]byte, error)

	// Put writes data under key and returns its public locator.
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)

	// Exists reports whether locator resolves to an object.
	Exists(ctx context.Context, locator string) (bool, error)
}

// cleanKey normalizes a key and rejects ones that could escape the store's root.
func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return key, nil
}

func notFound(locator string) error {
	return fmt.Errorf("%s: %w", locator, ErrNotFound)
}
