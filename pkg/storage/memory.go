package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps objects in process. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	baseURL string
	puts    int
}

// NewMemoryStore creates an empty store whose public URLs are prefixed with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		baseURL: baseURL,
	}
}

func (s *MemoryStore) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := cleanKey(locator)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(locator)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.objects[key] = stored
	s.types[key] = contentType
	s.puts++
	s.mu.Unlock()

	return Object{Key: key, PublicURL: s.publicURL(key)}, nil
}

func (s *MemoryStore) Exists(ctx context.Context, locator string) (bool, error) {
	key, err := cleanKey(locator)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Puts returns how many successful Put calls the store has served.
func (s *MemoryStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// ContentType returns the content type an object was stored with.
func (s *MemoryStore) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[strings.TrimLeft(key, "/")]
}

func (s *MemoryStore) publicURL(key string) string {
	if strings.HasSuffix(s.baseURL, "/") {
		return s.baseURL + key
	}
	return s.baseURL + "/" + key
}
