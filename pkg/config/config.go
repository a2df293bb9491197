package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage and record-store backends.
const (
	StorageSupabase = "supabase"
	StorageLocal    = "local"
	StorageMemory   = "memory"

	DBSupabase = "supabase"
	DBPostgres = "postgres"
	DBMongo    = "mongo"
	DBNone     = "none"

	TTSOpenAI     = "openai"
	TTSElevenLabs = "elevenlabs"
)

// Config holds all configuration for the tingfm CLI
type Config struct {
	// Observability configuration
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`   // debug, info, warn, error
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"` // Pretty print logs (for development)

	// Object storage for segments and merged audio
	StorageBackend      string `envconfig:"STORAGE_BACKEND" default:"local"`
	LocalStorageDir     string `envconfig:"LOCAL_STORAGE_DIR" default:"audio"`
	LocalStorageBaseURL string `envconfig:"LOCAL_STORAGE_BASE_URL" default:""`

	// Supabase project (storage and/or podcast records)
	SupabaseURL              string `envconfig:"SUPABASE_URL" default:""`
	SupabaseKey              string `envconfig:"SUPABASE_KEY" default:""` // service_role key server-side
	SupabaseBucket           string `envconfig:"SUPABASE_BUCKET" default:"podcasts"`
	SupabaseDBPassword       string `envconfig:"SUPABASE_DB_PASSWORD" default:""`
	SupabaseConnectionString string `envconfig:"SUPABASE_DB_URL" default:""`

	// Podcast record store
	DBBackend       string `envconfig:"DB_BACKEND" default:"none"`
	PostgresDSN     string `envconfig:"POSTGRES_DSN" default:""`
	MongoURI        string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string `envconfig:"MONGO_DATABASE" default:"tingfm"`
	MongoCollection string `envconfig:"MONGO_COLLECTION" default:"podcasts"`

	// Speech synthesis
	TTSProvider       string            `envconfig:"TTS_PROVIDER" default:"openai"`
	TTSTimeout        time.Duration     `envconfig:"TTS_TIMEOUT" default:"30s"` // per dialogue line
	HostVoices        map[string]string `envconfig:"HOST_VOICES"`               // host1:alloy,host2:onyx
	DefaultVoices     []string          `envconfig:"DEFAULT_VOICES" default:"alloy,onyx"`
	ElevenLabsAPIKey  string            `envconfig:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsBaseURL string            `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io/v1"`
	ElevenLabsModelID string            `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_multilingual_v2"`

	// OpenAI (TTS and script generation)
	OpenAIAPIKey    string  `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL   string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAITTSModel  string  `envconfig:"OPENAI_TTS_MODEL" default:"tts-1"`
	OpenAITTSSpeed  float64 `envconfig:"OPENAI_TTS_SPEED" default:"1.0"`
	OpenAIChatModel string  `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`

	// Merge
	MergeWorkers       int           `envconfig:"MERGE_WORKERS" default:"4"`        // concurrent segment fetches
	MergeRetryAttempts int           `envconfig:"MERGE_RETRY_ATTEMPTS" default:"1"` // 1 means no retry
	MergeRetryBackoff  time.Duration `envconfig:"MERGE_RETRY_BACKOFF" default:"1s"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every selected backend has what it needs to connect.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required for STORAGE_BACKEND=supabase")
		}
		if c.SupabaseBucket == "" {
			return fmt.Errorf("SUPABASE_BUCKET is required for STORAGE_BACKEND=supabase")
		}
	case StorageLocal, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.DBBackend {
	case DBSupabase:
		if c.SupabaseConnectionString == "" && c.SupabaseDBPassword == "" && (c.SupabaseURL == "" || c.SupabaseKey == "") {
			return fmt.Errorf("DB_BACKEND=supabase needs SUPABASE_DB_URL, SUPABASE_DB_PASSWORD or SUPABASE_URL+SUPABASE_KEY")
		}
	case DBPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for DB_BACKEND=postgres")
		}
	case DBMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for DB_BACKEND=mongo")
		}
	case DBNone:
	default:
		return fmt.Errorf("unknown DB_BACKEND %q", c.DBBackend)
	}

	switch c.TTSProvider {
	case TTSOpenAI, TTSElevenLabs:
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	if c.TTSTimeout <= 0 {
		return fmt.Errorf("TTS_TIMEOUT must be positive")
	}

	return nil
}

// RequireTTS checks credentials for the selected TTS provider. Only commands that
// synthesize speech call it, so extract and merge work without API keys.
func (c *Config) RequireTTS() error {
	switch c.TTSProvider {
	case TTSElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required for TTS_PROVIDER=elevenlabs")
		}
	default:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for TTS_PROVIDER=openai")
		}
	}
	return nil
}
