package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

// ElevenLabsConfig configures the ElevenLabs text-to-speech endpoint.
type ElevenLabsConfig struct {
	APIKey          string
	BaseURL         string // default https://api.elevenlabs.io/v1
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsSynthesizer implements Synthesizer using /text-to-speech/{voice_id}.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *httpclient.HTTPClient
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) (*ElevenLabsSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io/v1"
	}
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = 0.75
	}
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		client: httpclient.NewClient(httpclient.APIClient),
	}, nil
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		return nil, fmt.Errorf("elevenlabs voice id is required")
	}

	payload, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: s.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       s.cfg.Stability,
			SimilarityBoost: s.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	return doAudioRequest(ctx, s.client, req, "elevenlabs")
}
