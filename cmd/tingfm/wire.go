package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dustland/ting.fm-sub000/pkg/config"
	"github.com/dustland/ting.fm-sub000/pkg/db"
	"github.com/dustland/ting.fm-sub000/pkg/podcastservice"
	"github.com/dustland/ting.fm-sub000/pkg/resilience"
	"github.com/dustland/ting.fm-sub000/pkg/script"
	"github.com/dustland/ting.fm-sub000/pkg/speech"
	"github.com/dustland/ting.fm-sub000/pkg/storage"
)

// backends holds the connected collaborators of one invocation.
type backends struct {
	store    storage.ObjectStore
	podcasts db.PodcastStore
	closers  []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backends, error) {
	b := &backends{}

	// One Supabase client serves both storage and records when both select it.
	var supa *db.SupabaseClient
	connectSupabase := func() (*db.SupabaseClient, error) {
		if supa != nil {
			return supa, nil
		}
		c := db.NewSupabaseClient(db.SupabaseConfig{
			ConnectionString: cfg.SupabaseConnectionString,
			SupabaseURL:      cfg.SupabaseURL,
			SupabaseKey:      cfg.SupabaseKey,
			Password:         cfg.SupabaseDBPassword,
			// Storage alone never needs the database.
			StorageOnly: cfg.DBBackend != config.DBSupabase,
		})
		if err := c.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to supabase: %w", err)
		}
		if reason := c.FallbackReason(); reason != nil {
			logger.Warn().Err(reason).Msg("supabase direct postgres unavailable, using REST")
		}
		logger.Debug().Str("mode", string(c.Mode())).Msg("supabase connected")
		b.closers = append(b.closers, func() { _ = c.Close() })
		supa = c
		return c, nil
	}

	switch cfg.StorageBackend {
	case config.StorageSupabase:
		c, err := connectSupabase()
		if err != nil {
			return nil, err
		}
		if c.SDK() == nil {
			b.Close()
			return nil, fmt.Errorf("supabase storage needs SUPABASE_URL and SUPABASE_KEY")
		}
		store, err := storage.NewSupabaseStore(storage.SupabaseStoreConfig{
			ProjectURL: cfg.SupabaseURL,
			APIKey:     cfg.SupabaseKey,
			Bucket:     cfg.SupabaseBucket,
		}, c.SDK().Storage, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.store = store
	case config.StorageMemory:
		b.store = storage.NewMemoryStore("")
	default:
		b.store = storage.NewLocalStore(cfg.LocalStorageDir, cfg.LocalStorageBaseURL)
	}

	switch cfg.DBBackend {
	case config.DBSupabase:
		c, err := connectSupabase()
		if err != nil {
			b.Close()
			return nil, err
		}
		podcasts, err := db.NewSupabasePodcastStore(c)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.podcasts = podcasts
	case config.DBPostgres:
		c := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.PostgresDSN})
		if err := c.Connect(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		b.closers = append(b.closers, func() { _ = c.Close() })
		b.podcasts = db.NewSQLPodcastStore(c)
	case config.DBMongo:
		c := db.NewMongoClient(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err := c.Connect(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		b.closers = append(b.closers, func() { _ = c.Close(context.Background()) })
		b.podcasts = c
	}

	logger.Debug().
		Str("storage_backend", cfg.StorageBackend).
		Str("db_backend", cfg.DBBackend).
		Msg("Backends ready")
	return b, nil
}

func newSynthesizer(cfg *config.Config) (speech.Synthesizer, error) {
	if err := cfg.RequireTTS(); err != nil {
		return nil, err
	}
	if cfg.TTSProvider == config.TTSElevenLabs {
		return speech.NewElevenLabsSynthesizer(speech.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			ModelID: cfg.ElevenLabsModelID,
		})
	}
	return speech.NewOpenAISynthesizer(speech.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAITTSModel,
		Speed:   cfg.OpenAITTSSpeed,
	})
}

func newService(cfg *config.Config, b *backends, withGeneration bool, logger zerolog.Logger) (*podcastservice.Service, error) {
	svcCfg := podcastservice.Config{
		Store:        b.store,
		Podcasts:     b.podcasts,
		Voices:       speech.NewVoiceMap(cfg.HostVoices, cfg.DefaultVoices),
		LineTimeout:  cfg.TTSTimeout,
		MergeWorkers: cfg.MergeWorkers,
		MergeRetry: &resilience.RetryConfig{
			MaxAttempts:       cfg.MergeRetryAttempts,
			InitialBackoff:    cfg.MergeRetryBackoff,
			MaxBackoff:        8 * cfg.MergeRetryBackoff,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		Logger: logger,
	}

	if withGeneration {
		synth, err := newSynthesizer(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for script generation")
		}
		gen, err := script.NewOpenAIChatGenerator(script.OpenAIChatConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIChatModel,
		})
		if err != nil {
			return nil, err
		}
		svcCfg.Synthesizer = synth
		svcCfg.Generator = gen
	}

	return podcastservice.New(svcCfg)
}
