// Package podcastservice turns a source into a podcast: script, dialogue lines, one clip per
// line, and a single merged audio asset recorded on the podcast.
package podcastservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustland/ting.fm-sub000/pkg/db"
	"github.com/dustland/ting.fm-sub000/pkg/dialogue"
	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/merger"
	"github.com/dustland/ting.fm-sub000/pkg/resilience"
	"github.com/dustland/ting.fm-sub000/pkg/script"
	"github.com/dustland/ting.fm-sub000/pkg/speech"
	"github.com/dustland/ting.fm-sub000/pkg/storage"
)

var (
	ErrEmptyPodcastID = errors.New("podcast ID is empty")
	// ErrNoDialogue means the script parsed cleanly but held no speaker-tagged lines.
	ErrNoDialogue = errors.New("script contains no dialogue lines")
)

// Config wires the collaborators of a Service. Podcasts may be nil, in which case
// nothing is persisted beyond object storage.
type Config struct {
	Generator   script.Generator
	Synthesizer speech.Synthesizer
	Store       storage.ObjectStore
	Podcasts    db.PodcastStore
	Voices      *speech.VoiceMap

	// LineTimeout bounds each synthesis request; speech.DefaultLineTimeout when zero.
	LineTimeout time.Duration

	MergeWorkers int

	// MergeRetry is applied to retryable merge failures. Nil means a single attempt.
	MergeRetry *resilience.RetryConfig

	Logger zerolog.Logger
}

// Service runs the generation flow.
type Service struct {
	generator   script.Generator
	synth       speech.Synthesizer
	store       storage.ObjectStore
	podcasts    db.PodcastStore
	voices      *speech.VoiceMap
	merger      *merger.Merger
	lineTimeout time.Duration
	retry       *resilience.RetryConfig
	now         func() time.Time
	logger      zerolog.Logger
}

// New creates a service. Generator and Synthesizer are only required by Generate.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	voices := cfg.Voices
	if voices == nil {
		voices = speech.NewVoiceMap(nil, nil)
	}

	retry := cfg.MergeRetry
	if retry == nil {
		retry = &resilience.RetryConfig{MaxAttempts: 1}
	}

	workers := cfg.MergeWorkers
	if workers <= 0 {
		workers = 4
	}

	return &Service{
		generator:   cfg.Generator,
		synth:       cfg.Synthesizer,
		store:       cfg.Store,
		podcasts:    cfg.Podcasts,
		voices:      voices,
		merger:      merger.New(cfg.Store, merger.WithWorkers(workers), merger.WithLogger(cfg.Logger)),
		lineTimeout: cfg.LineTimeout,
		retry:       retry,
		now:         time.Now,
		logger:      cfg.Logger,
	}, nil
}

// Generate builds a podcast from src and returns the saved record.
//
// Any failing step aborts the run: no podcast is saved and no merged asset is written.
// Clips already stored for a failed run are left in place.
func (s *Service) Generate(ctx context.Context, podcastID string, src domain.Source) (*domain.Podcast, error) {
	podcastID = strings.TrimSpace(podcastID)
	if podcastID == "" {
		return nil, ErrEmptyPodcastID
	}
	if s.generator == nil || s.synth == nil {
		return nil, fmt.Errorf("script generator and synthesizer are required")
	}

	logger := s.logger.With().Str("podcast_id", podcastID).Logger()

	text, err := s.generator.Generate(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	lines := dialogue.NewExtractor(dialogue.SequentialIDs(podcastID)).Extract(text)
	if len(lines) == 0 {
		logger.Warn().Int("script_bytes", len(text)).Msg("Script has no dialogue lines")
		return nil, ErrNoDialogue
	}
	logger.Info().Int("lines", len(lines)).Msg("Extracted dialogue")

	voices := s.voices.Assign(dialogue.Hosts(lines))
	clips, err := speech.SynthesizeAll(ctx, s.synth, lines, voices, s.lineTimeout)
	if err != nil {
		return nil, fmt.Errorf("synthesize dialogue: %w", err)
	}

	segments, err := s.storeClips(ctx, podcastID, clips)
	if err != nil {
		return nil, err
	}

	asset, err := s.merge(ctx, podcastID, segments)
	if err != nil {
		return nil, err
	}

	podcast := &domain.Podcast{
		ID:         podcastID,
		Title:      src.Title,
		SourceURL:  src.URL,
		SourceText: src.Text,
		Dialogues:  lines,
		AudioURL:   asset.PublicURL,
	}
	if s.podcasts != nil {
		if err := s.podcasts.Save(ctx, podcast); err != nil {
			return nil, fmt.Errorf("save podcast: %w", err)
		}
	}

	logger.Info().Str("key", asset.StorageKey).Msg("Podcast generated")
	return podcast, nil
}

// Remerge merges existing segments again and points the podcast at the new asset.
// The full segment list is re-supplied on every attempt.
func (s *Service) Remerge(ctx context.Context, podcastID string, segments []domain.AudioSegment) (domain.MergedAudioAsset, error) {
	podcastID = strings.TrimSpace(podcastID)
	if podcastID == "" {
		return domain.MergedAudioAsset{}, ErrEmptyPodcastID
	}

	asset, err := s.merge(ctx, podcastID, segments)
	if err != nil {
		return domain.MergedAudioAsset{}, err
	}

	if s.podcasts != nil {
		if err := s.podcasts.UpdateAudioURL(ctx, podcastID, asset.PublicURL); err != nil {
			return asset, fmt.Errorf("record merged audio: %w", err)
		}
	}
	return asset, nil
}

func (s *Service) merge(ctx context.Context, podcastID string, segments []domain.AudioSegment) (domain.MergedAudioAsset, error) {
	var (
		asset   domain.MergedAudioAsset
		attempt int
	)
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		attempt++
		var err error
		asset, err = s.merger.Merge(ctx, podcastID, segments)
		if err != nil && merger.IsRetryable(err) {
			s.logger.Warn().Err(err).Str("podcast_id", podcastID).Int("attempt", attempt).Msg("Merge attempt failed")
		}
		return err
	}, s.retry, merger.IsRetryable)
	if err != nil {
		return domain.MergedAudioAsset{}, fmt.Errorf("merge audio: %w", err)
	}
	return asset, nil
}

// storeClips uploads clips under a per-run prefix so reruns never overwrite each other.
func (s *Service) storeClips(ctx context.Context, podcastID string, clips [][]byte) ([]domain.AudioSegment, error) {
	run := s.now().UnixNano()
	segments := make([]domain.AudioSegment, 0, len(clips))
	for i, clip := range clips {
		key := segmentKey(podcastID, run, i+1)
		obj, err := s.store.Put(ctx, key, clip, merger.ContentType)
		if err != nil {
			return nil, fmt.Errorf("store segment %d: %w", i+1, err)
		}
		segments = append(segments, domain.AudioSegment{Locator: obj.Key})
	}
	return segments, nil
}

func segmentKey(podcastID string, run int64, n int) string {
	return fmt.Sprintf("podcasts/%s/segments/%d/%d.mp3", strings.ReplaceAll(podcastID, "/", "_"), run, n)
}
