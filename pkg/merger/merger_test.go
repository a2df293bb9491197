package merger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/storage"
)

// mockStore is a mock implementation of storage.ObjectStore for testing
type mockStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	getErrs   map[string]error
	delays    map[string]time.Duration
	putErr    error
	puts      []putCall
	fetched   [][]byte
	callCount int
}

type putCall struct {
	key         string
	data        []byte
	contentType string
}

func newMockStore(objects map[string][]byte) *mockStore {
	return &mockStore{
		objects: objects,
		getErrs: make(map[string]error),
		delays:  make(map[string]time.Duration),
	}
}

func (m *mockStore) Get(ctx context.Context, locator string) ([]byte, error) {
	m.mu.Lock()
	m.callCount++
	delay := m.delays[locator]
	getErr := m.getErrs[locator]
	data, ok := m.objects[locator]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", locator, storage.ErrNotFound)
	}

	m.mu.Lock()
	m.fetched = append(m.fetched, data)
	m.mu.Unlock()
	return data, nil
}

func (m *mockStore) Put(ctx context.Context, key string, data []byte, contentType string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return storage.Object{}, m.putErr
	}
	m.puts = append(m.puts, putCall{key: key, data: data, contentType: contentType})
	return storage.Object{Key: key, PublicURL: "https://cdn.example.com/" + key}, nil
}

func (m *mockStore) Exists(ctx context.Context, locator string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[locator]
	return ok, nil
}

func fixedClock(ts int64) func() time.Time {
	return func() time.Time { return time.Unix(0, ts) }
}

func segments(locators ...string) []domain.AudioSegment {
	out := make([]domain.AudioSegment, 0, len(locators))
	for _, l := range locators {
		out = append(out, domain.AudioSegment{Locator: l})
	}
	return out
}

func TestMerge_ConcatenatesInOrder(t *testing.T) {
	store := newMockStore(map[string][]byte{
		"a.mp3": {1, 2, 3},
		"b.mp3": {4, 5},
	})
	m := New(store, WithClock(fixedClock(42)))

	asset, err := m.Merge(context.Background(), "pod1", segments("a.mp3", "b.mp3"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(store.puts) != 1 {
		t.Fatalf("Expected 1 upload, got %d", len(store.puts))
	}
	put := store.puts[0]
	if !bytes.Equal(put.data, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Expected merged bytes [1 2 3 4 5], got %v", put.data)
	}
	if put.contentType != ContentType {
		t.Errorf("Expected content type %q, got %q", ContentType, put.contentType)
	}
	if put.key != "podcasts/pod1/merged-42.mp3" {
		t.Errorf("Unexpected key: %s", put.key)
	}
	if asset.StorageKey != put.key {
		t.Errorf("Expected storage key %q, got %q", put.key, asset.StorageKey)
	}
	if asset.PublicURL != "https://cdn.example.com/podcasts/pod1/merged-42.mp3" {
		t.Errorf("Unexpected public URL: %s", asset.PublicURL)
	}
}

func TestMerge_OrderIndependentOfFetchCompletion(t *testing.T) {
	store := newMockStore(map[string][]byte{
		"slow.mp3":   []byte("first-"),
		"medium.mp3": []byte("second-"),
		"fast.mp3":   []byte("third"),
	})
	store.delays["slow.mp3"] = 60 * time.Millisecond
	store.delays["medium.mp3"] = 30 * time.Millisecond

	m := New(store, WithWorkers(3))
	if _, err := m.Merge(context.Background(), "pod1", segments("slow.mp3", "medium.mp3", "fast.mp3")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := string(store.puts[0].data); got != "first-second-third" {
		t.Errorf("Expected input order to be preserved, got %q", got)
	}
}

func TestMerge_RoundTripEqualsFetchedBytes(t *testing.T) {
	objects := make(map[string][]byte)
	var locators []string
	var expected []byte
	for i := 0; i < 20; i++ {
		loc := fmt.Sprintf("seg-%02d.mp3", i)
		data := bytes.Repeat([]byte{byte(i)}, i+1)
		objects[loc] = data
		locators = append(locators, loc)
		expected = append(expected, data...)
	}
	store := newMockStore(objects)

	if _, err := New(store, WithWorkers(5)).Merge(context.Background(), "pod1", segments(locators...)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !bytes.Equal(store.puts[0].data, expected) {
		t.Errorf("Uploaded bytes differ from the ordered concatenation of retrieved segments")
	}
	if store.callCount != 20 {
		t.Errorf("Expected 20 fetches, got %d", store.callCount)
	}
}

func TestMerge_MissingSegment(t *testing.T) {
	store := newMockStore(map[string][]byte{"a.mp3": {1}})

	_, err := New(store).Merge(context.Background(), "pod1", segments("a.mp3", "missing.mp3"))

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got: %v", err)
	}
	if notFound.Locator != "missing.mp3" {
		t.Errorf("Expected locator missing.mp3, got %q", notFound.Locator)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		t.Error("Expected NotFoundError to unwrap to storage.ErrNotFound")
	}
	if len(store.puts) != 0 {
		t.Errorf("Expected zero uploads, got %d", len(store.puts))
	}
	if IsRetryable(err) {
		t.Error("Expected a missing segment not to be retryable")
	}
}

func TestMerge_EmptyLocatorIsNotFound(t *testing.T) {
	store := newMockStore(map[string][]byte{"a.mp3": {1}})

	_, err := New(store).Merge(context.Background(), "pod1", segments("a.mp3", " "))

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got: %v", err)
	}
	if store.callCount != 0 {
		t.Errorf("Expected no fetches, got %d", store.callCount)
	}
}

func TestMerge_InvalidKeyIsNotFound(t *testing.T) {
	tests := []struct {
		name    string
		locator string
	}{
		{"parent directory", "../evil.mp3"},
		{"root only", "/"},
		{"nested parent", "podcasts/../../x.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore("")
			if _, err := store.Put(context.Background(), "a.mp3", []byte{1}, ContentType); err != nil {
				t.Fatalf("seed failed: %v", err)
			}

			_, err := New(store).Merge(context.Background(), "pod1", segments("a.mp3", tt.locator))

			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				t.Fatalf("Expected NotFoundError, got: %v", err)
			}
			if notFound.Locator != tt.locator {
				t.Errorf("Expected locator %q, got %q", tt.locator, notFound.Locator)
			}
			if IsRetryable(err) {
				t.Error("Invalid locator must not be retryable")
			}
			if store.Puts() != 1 {
				t.Errorf("Expected no merged upload, got %d puts", store.Puts()-1)
			}
		})
	}
}

func TestMerge_RetrievalError(t *testing.T) {
	store := newMockStore(map[string][]byte{"a.mp3": {1}, "b.mp3": {2}})
	cause := errors.New("connection reset by peer")
	store.getErrs["b.mp3"] = cause

	_, err := New(store).Merge(context.Background(), "pod1", segments("a.mp3", "b.mp3"))

	var retrieval *RetrievalError
	if !errors.As(err, &retrieval) {
		t.Fatalf("Expected RetrievalError, got: %v", err)
	}
	if retrieval.Locator != "b.mp3" {
		t.Errorf("Expected locator b.mp3, got %q", retrieval.Locator)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected RetrievalError to wrap the underlying cause")
	}
	if len(store.puts) != 0 {
		t.Errorf("Expected zero uploads, got %d", len(store.puts))
	}
	if !IsRetryable(err) {
		t.Error("Expected retrieval error to be retryable")
	}
	if store.callCount > 2 {
		t.Errorf("Expected no internal retries, got %d fetches", store.callCount)
	}
}

func TestMerge_UploadError(t *testing.T) {
	store := newMockStore(map[string][]byte{"a.mp3": {1}})
	store.putErr = errors.New("storage unavailable")

	_, err := New(store, WithClock(fixedClock(7))).Merge(context.Background(), "pod1", segments("a.mp3"))

	var upload *UploadError
	if !errors.As(err, &upload) {
		t.Fatalf("Expected UploadError, got: %v", err)
	}
	if upload.Key != "podcasts/pod1/merged-7.mp3" {
		t.Errorf("Unexpected key: %s", upload.Key)
	}
	if !IsRetryable(err) {
		t.Error("Expected upload error to be retryable")
	}
}

func TestMerge_EmptyInput(t *testing.T) {
	store := newMockStore(nil)

	_, err := New(store).Merge(context.Background(), "pod1", nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Expected ErrEmptyInput, got: %v", err)
	}
	if len(store.puts) != 0 {
		t.Errorf("Expected zero uploads, got %d", len(store.puts))
	}

	if _, err := New(store).Merge(context.Background(), "  ", segments("a.mp3")); !errors.Is(err, ErrEmptyPodcastID) {
		t.Errorf("Expected ErrEmptyPodcastID, got: %v", err)
	}
}

func TestMerge_FreshKeyPerAttempt(t *testing.T) {
	store := newMockStore(map[string][]byte{"a.mp3": {1}})
	var tick int64
	clock := func() time.Time {
		tick++
		return time.Unix(0, tick)
	}
	m := New(store, WithClock(clock))

	first, err := m.Merge(context.Background(), "pod/1", segments("a.mp3"))
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	second, err := m.Merge(context.Background(), "pod/1", segments("a.mp3"))
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	if first.StorageKey == second.StorageKey {
		t.Errorf("Expected distinct keys across merges, got %q twice", first.StorageKey)
	}
	if first.StorageKey != "podcasts/pod_1/merged-1.mp3" {
		t.Errorf("Expected slashes in the podcast id to be replaced, got %q", first.StorageKey)
	}
}

func TestMerge_WithMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("https://cdn.example.com")
	store.Put(ctx, "a.mp3", []byte{1, 2, 3}, ContentType)
	store.Put(ctx, "b.mp3", []byte{4, 5}, ContentType)

	asset, err := New(store).Merge(ctx, "pod1", segments("a.mp3", "b.mp3"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	merged, err := store.Get(ctx, asset.StorageKey)
	if err != nil {
		t.Fatalf("Expected merged asset to be stored: %v", err)
	}
	if !bytes.Equal(merged, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Expected [1 2 3 4 5], got %v", merged)
	}

	_, err = New(store).Merge(ctx, "pod1", segments("a.mp3", "missing.mp3"))
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || notFound.Locator != "missing.mp3" {
		t.Fatalf("Expected NotFoundError(missing.mp3), got: %v", err)
	}
	if store.Puts() != 3 {
		t.Errorf("Expected the failed merge to upload nothing, got %d total puts", store.Puts())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"empty input", ErrEmptyInput, false},
		{"not found", &NotFoundError{Locator: "x"}, false},
		{"retrieval", &RetrievalError{Locator: "x", Err: errors.New("timeout")}, true},
		{"wrapped upload", fmt.Errorf("remerge: %w", &UploadError{Key: "k", Err: errors.New("503")}), true},
		{"cancelled", &RetrievalError{Locator: "x", Err: context.Canceled}, false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}
