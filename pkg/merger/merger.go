// Package merger concatenates synthesized audio segments into one playable asset.
//
// Segments are joined byte-for-byte in the order supplied. There is no re-encoding, no frame
// validation and no re-muxing: the result is only playable because every segment comes from the
// same TTS encoding (MP3 frames survive naive concatenation well enough for browser playback).
// Segments with differing encodings or container headers will produce a file that players may
// reject or play partially. This is a known limitation.
package merger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/storage"
)

const (
	// ContentType of merged assets. Every segment is expected to share it.
	ContentType = "audio/mpeg"

	defaultWorkers = 4
)

// Merger fetches segments from an object store and uploads their concatenation.
type Merger struct {
	store   storage.ObjectStore
	workers int
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithWorkers bounds concurrent segment fetches. n <= 0 is coerced to 1.
func WithWorkers(n int) Option {
	return func(m *Merger) {
		if n <= 0 {
			n = 1
		}
		m.workers = n
	}
}

// WithClock replaces the time source used to name merged assets.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger for merge progress and failures. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Merger) {
		m.logger = logger
	}
}

// New creates a merger over store.
func New(store storage.ObjectStore, opts ...Option) *Merger {
	m := &Merger{
		store:   store,
		workers: defaultWorkers,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge concatenates segments in order and persists the result under a fresh key.
//
// It is all-or-nothing: if any segment is missing (*NotFoundError) or cannot be read
// (*RetrievalError), nothing is uploaded. A failed upload returns *UploadError. Merge never
// retries; callers re-run it with the full segment list. Original segments are left in place.
func (m *Merger) Merge(ctx context.Context, podcastID string, segments []domain.AudioSegment) (domain.MergedAudioAsset, error) {
	podcastID = strings.TrimSpace(podcastID)
	if podcastID == "" {
		return domain.MergedAudioAsset{}, ErrEmptyPodcastID
	}
	if len(segments) == 0 {
		return domain.MergedAudioAsset{}, ErrEmptyInput
	}

	logger := m.logger.With().Str("podcast_id", podcastID).Int("segments", len(segments)).Logger()

	parts, err := m.fetchAll(ctx, segments)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch audio segments, merge aborted")
		return domain.MergedAudioAsset{}, err
	}

	merged := concat(parts)

	key := m.assetKey(podcastID)
	obj, err := m.store.Put(ctx, key, merged, ContentType)
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Failed to upload merged audio")
		return domain.MergedAudioAsset{}, &UploadError{Key: key, Err: err}
	}

	logger.Info().Str("key", obj.Key).Int("bytes", len(merged)).Msg("Merged audio segments")
	return domain.MergedAudioAsset{StorageKey: obj.Key, PublicURL: obj.PublicURL}, nil
}

// fetchAll reads every segment concurrently. parts[i] always holds segments[i],
// whatever order the fetches complete in. The first failure cancels the rest.
func (m *Merger) fetchAll(ctx context.Context, segments []domain.AudioSegment) ([][]byte, error) {
	for _, seg := range segments {
		if strings.TrimSpace(seg.Locator) == "" {
			return nil, &NotFoundError{Locator: seg.Locator}
		}
	}

	parts := make([][]byte, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			data, err := m.store.Get(gctx, seg.Locator)
			switch {
			case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidKey):
				return &NotFoundError{Locator: seg.Locator}
			case err != nil:
				return &RetrievalError{Locator: seg.Locator, Err: err}
			}
			parts[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func (m *Merger) assetKey(podcastID string) string {
	safeID := strings.ReplaceAll(podcastID, "/", "_")
	return fmt.Sprintf("podcasts/%s/merged-%d.mp3", safeID, m.now().UnixNano())
}

func concat(parts [][]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}

	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
