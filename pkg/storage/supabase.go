package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	storage_go "github.com/supabase-community/storage-go"

	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

// BucketAPI is the subset of the Supabase storage client used for writes.
// *storage_go.Client (supabase.Client.Storage) satisfies it.
type BucketAPI interface {
	UploadFile(bucketId string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketId string, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseStoreConfig identifies the bucket holding podcast audio.
type SupabaseStoreConfig struct {
	// ProjectURL example: "https://[project-ref].supabase.co"
	ProjectURL string

	// APIKey is sent on reads. Use the service_role key server-side.
	APIKey string

	// Bucket must be public for PublicURL to be dereferenceable without a token.
	Bucket string
}

// SupabaseStore stores objects in a Supabase Storage bucket.
//
// Uploads and public URLs go through the SDK. Reads use the object endpoint directly so that
// a missing object can be told apart from a transport failure by status code.
type SupabaseStore struct {
	cfg    SupabaseStoreConfig
	api    BucketAPI
	client *httpclient.HTTPClient
	logger zerolog.Logger
}

// NewSupabaseStore creates a store over api (usually supabaseClient.SDK().Storage).
func NewSupabaseStore(cfg SupabaseStoreConfig, api BucketAPI, logger zerolog.Logger) (*SupabaseStore, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("supabase project URL is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("supabase storage bucket is required")
	}
	if api == nil {
		return nil, fmt.Errorf("supabase storage client is required")
	}
	return &SupabaseStore{
		cfg:    cfg,
		api:    api,
		client: httpclient.NewClient(httpclient.APIClient),
		logger: logger.With().Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

func (s *SupabaseStore) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := cleanKey(locator)
	if err != nil {
		return nil, err
	}

	resp, err := s.objectRequest(ctx, http.MethodGet, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", locator, err)
	}
	defer httpclient.DrainAndClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", locator, err)
	}

	if isMissing(resp.StatusCode, body) {
		return nil, notFound(locator)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status code: %d", locator, resp.StatusCode)
	}

	return body, nil
}

func (s *SupabaseStore) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	upsert := false
	opts := storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}
	if _, err := s.api.UploadFile(s.cfg.Bucket, key, bytes.NewReader(data), opts); err != nil {
		s.logger.Error().Err(err).Str("key", key).Int("bytes", len(data)).Msg("Failed to upload object to Supabase storage")
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}

	publicURL := s.api.GetPublicUrl(s.cfg.Bucket, key).SignedURL
	s.logger.Debug().Str("key", key).Str("public_url", publicURL).Msg("Uploaded object to Supabase storage")

	return Object{Key: key, PublicURL: publicURL}, nil
}

func (s *SupabaseStore) Exists(ctx context.Context, locator string) (bool, error) {
	key, err := cleanKey(locator)
	if err != nil {
		return false, err
	}

	resp, err := s.objectRequest(ctx, http.MethodHead, key)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", locator, err)
	}
	defer httpclient.DrainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case isMissing(resp.StatusCode, nil):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: unexpected status code: %d", locator, resp.StatusCode)
	}
}

func (s *SupabaseStore) objectRequest(ctx context.Context, method, key string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.objectURL(key), nil)
	if err != nil {
		return nil, err
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		req.Header.Set("apikey", s.cfg.APIKey)
	}
	return s.client.Do(req)
}

// objectURL builds {project}/storage/v1/object/{bucket}/{key} with each segment escaped.
func (s *SupabaseStore) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/storage/v1/object/%s/%s",
		strings.TrimRight(s.cfg.ProjectURL, "/"), url.PathEscape(s.cfg.Bucket), strings.Join(parts, "/"))
}

// isMissing reports a missing object. Supabase answers some missing objects with
// 400 and a {"statusCode":"404"} body instead of a plain 404.
func isMissing(status int, body []byte) bool {
	if status == http.StatusNotFound {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	if body == nil {
		return true
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "not found") || strings.Contains(lower, "not_found") || strings.Contains(lower, `"404"`)
}
