package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
)

// SupabasePodcastStore persists podcasts through a SupabaseClient. With a direct database
// connection it delegates to SQLPodcastStore; otherwise it goes through the PostgREST API.
type SupabasePodcastStore struct {
	client *SupabaseClient
	sql    *SQLPodcastStore
	table  string
}

// NewSupabasePodcastStore requires a connected client.
func NewSupabasePodcastStore(client *SupabaseClient) (*SupabasePodcastStore, error) {
	if client == nil || (!client.HasDirectDB() && client.SDK() == nil) {
		return nil, fmt.Errorf("supabase client not connected")
	}
	if client.Mode() == ModeStorage {
		return nil, fmt.Errorf("supabase client was connected for storage only")
	}
	s := &SupabasePodcastStore{client: client, table: "podcasts"}
	if client.HasDirectDB() {
		s.sql = NewSQLPodcastStore(client)
	}
	return s, nil
}

func (s *SupabasePodcastStore) Save(ctx context.Context, p *domain.Podcast) error {
	if s.sql != nil {
		return s.sql.Save(ctx, p)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, _, err := s.client.SDK().From(s.table).Insert(p, true, "id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("save podcast %s: %w", p.ID, err)
	}
	return nil
}

func (s *SupabasePodcastStore) Get(ctx context.Context, id string) (*domain.Podcast, error) {
	if s.sql != nil {
		return s.sql.Get(ctx, id)
	}

	body, _, err := s.client.SDK().From(s.table).Select("*", "", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("get podcast %s: %w", id, err)
	}

	var rows []domain.Podcast
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode podcast %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrPodcastNotFound)
	}
	return &rows[0], nil
}

func (s *SupabasePodcastStore) UpdateAudioURL(ctx context.Context, id, audioURL string) error {
	if s.sql != nil {
		return s.sql.UpdateAudioURL(ctx, id, audioURL)
	}

	update := map[string]interface{}{
		"audio_url":  audioURL,
		"updated_at": time.Now().UTC(),
	}
	// representation lets an update that matched nothing be told apart from success.
	body, _, err := s.client.SDK().From(s.table).Update(update, "representation", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("update audio url for %s: %w", id, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode update response for %s: %w", id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: %w", id, ErrPodcastNotFound)
	}
	return nil
}
