package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

// OpenAIConfig configures the OpenAI speech endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default https://api.openai.com/v1
	Model   string // default tts-1
	Speed   float64
}

// OpenAISynthesizer implements Synthesizer using the OpenAI /audio/speech endpoint.
type OpenAISynthesizer struct {
	cfg    OpenAIConfig
	client *httpclient.HTTPClient
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// NewOpenAISynthesizer creates OpenAI TTS synthesizer.
func NewOpenAISynthesizer(cfg OpenAIConfig) (*OpenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	return &OpenAISynthesizer{
		cfg:    cfg,
		client: httpclient.NewClient(httpclient.APIClient),
	}, nil
}

// Synthesize converts text to mp3 bytes.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(openAISpeechRequest{
		Model:          s.cfg.Model,
		Input:          text,
		Voice:          voiceID,
		Speed:          s.cfg.Speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	return doAudioRequest(ctx, s.client, req, "openai")
}
