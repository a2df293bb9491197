// Package script asks a chat-completion model for a two-host podcast script.
package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

var (
	ErrEmptySource     = errors.New("source text is empty")
	ErrEmptyCompletion = errors.New("model returned an empty script")
)

// maxSourceRunes caps the source text sent to the model.
const maxSourceRunes = 24000

// Generator produces a raw script in the [[host]]: convention from a source.
type Generator interface {
	Generate(ctx context.Context, source domain.Source) (string, error)
}

// OpenAIChatConfig configures the chat completion endpoint.
type OpenAIChatConfig struct {
	APIKey  string
	BaseURL string // default https://api.openai.com/v1
	Model   string // default gpt-4o-mini
	Hosts   []string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIChatGenerator implements Generator with the /chat/completions endpoint.
type OpenAIChatGenerator struct {
	cfg    OpenAIChatConfig
	client *httpclient.HTTPClient
}

func NewOpenAIChatGenerator(cfg OpenAIChatConfig) (*OpenAIChatGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{"host1", "host2"}
	}
	return &OpenAIChatGenerator{cfg: cfg, client: httpclient.NewClient(httpclient.APIClient)}, nil
}

func (g *OpenAIChatGenerator) Generate(ctx context.Context, source domain.Source) (string, error) {
	text := strings.TrimSpace(source.Text)
	if text == "" {
		return "", ErrEmptySource
	}

	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(g.cfg.Hosts)},
			{Role: "user", Content: userPrompt(source.Title, truncateRunes(text, maxSourceRunes))},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(g.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	return out.Choices[0].Message.Content, nil
}

func systemPrompt(hosts []string) string {
	tags := make([]string, len(hosts))
	for i, h := range hosts {
		tags[i] = "[[" + h + "]]"
	}
	return "You write engaging two-host podcast conversations. The speakers are " + strings.Join(tags, " and ") +
		". Write every line as [[speaker]]: what they say]] and output nothing else."
}

func userPrompt(title, text string) string {
	if title == "" {
		return "Turn the following material into a podcast conversation:\n\n" + text
	}
	return fmt.Sprintf("Turn the following material, titled %q, into a podcast conversation:\n\n%s", title, text)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || n >= len(r) {
		return s
	}
	return string(r[:n])
}
