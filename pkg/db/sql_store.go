package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
)

// SQLPodcastStore implements PodcastStore on a Postgres `podcasts` table:
//
//	id text primary key, title text, source_url text, source_text text,
//	dialogues jsonb, audio_url text, created_at timestamptz, updated_at timestamptz
type SQLPodcastStore struct {
	provider DBProvider
	table    string
}

// NewSQLPodcastStore creates a store over a Postgres or Supabase connection.
func NewSQLPodcastStore(provider DBProvider) *SQLPodcastStore {
	return &SQLPodcastStore{provider: provider, table: "podcasts"}
}

func (s *SQLPodcastStore) db() (*sql.DB, error) {
	if s.provider == nil || s.provider.DB() == nil {
		return nil, fmt.Errorf("database not connected")
	}
	return s.provider.DB(), nil
}

func (s *SQLPodcastStore) Save(ctx context.Context, p *domain.Podcast) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	dialogues, err := json.Marshal(p.Dialogues)
	if err != nil {
		return fmt.Errorf("encode dialogues: %w", err)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO %s (id, title, source_url, source_text, dialogues, audio_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	source_url = EXCLUDED.source_url,
	source_text = EXCLUDED.source_text,
	dialogues = EXCLUDED.dialogues,
	audio_url = EXCLUDED.audio_url,
	updated_at = EXCLUDED.updated_at`, s.table)

	if _, err := db.ExecContext(ctx, query,
		p.ID, p.Title, p.SourceURL, p.SourceText, string(dialogues), p.AudioURL, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save podcast %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLPodcastStore) Get(ctx context.Context, id string) (*domain.Podcast, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT id, title, source_url, source_text, dialogues, audio_url, created_at, updated_at
FROM %s WHERE id = $1`, s.table)

	var (
		p         domain.Podcast
		sourceURL sql.NullString
		text      sql.NullString
		audioURL  sql.NullString
		dialogues []byte
	)
	err = db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Title, &sourceURL, &text, &dialogues, &audioURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrPodcastNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get podcast %s: %w", id, err)
	}

	p.SourceURL = sourceURL.String
	p.SourceText = text.String
	p.AudioURL = audioURL.String
	if len(dialogues) > 0 {
		if err := json.Unmarshal(dialogues, &p.Dialogues); err != nil {
			return nil, fmt.Errorf("decode dialogues for %s: %w", id, err)
		}
	}
	return &p, nil
}

func (s *SQLPodcastStore) UpdateAudioURL(ctx context.Context, id, audioURL string) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET audio_url = $2, updated_at = $3 WHERE id = $1`, s.table)
	res, err := db.ExecContext(ctx, query, id, audioURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update audio url for %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update audio url for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrPodcastNotFound)
	}
	return nil
}
