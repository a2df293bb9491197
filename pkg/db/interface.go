package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
)

// ErrPodcastNotFound is returned when no podcast record has the requested ID.
var ErrPodcastNotFound = errors.New("podcast not found")

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows both PostgresClient and SupabaseClient to be used interchangeably.
type DBProvider interface {
	DB() *sql.DB
}

// PodcastStore persists podcast records. The surrounding application owns the schema.
type PodcastStore interface {
	// Save inserts or replaces the podcast identified by p.ID.
	Save(ctx context.Context, p *domain.Podcast) error

	Get(ctx context.Context, id string) (*domain.Podcast, error)

	// UpdateAudioURL points the podcast at a newly merged asset.
	UpdateAudioURL(ctx context.Context, id, audioURL string) error
}
