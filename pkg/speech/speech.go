// Package speech wraps the text-to-speech providers that voice each dialogue line.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

var (
	ErrRateLimited = errors.New("speech provider rate limit exceeded")
	ErrTimeout     = errors.New("speech synthesis timed out")
	ErrEmptyText   = errors.New("text to synthesize is empty")
	ErrEmptyAudio  = errors.New("speech provider returned no audio")
)

// Synthesizer converts text spoken by voiceID into encoded audio bytes (mp3).
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// doAudioRequest sends req and returns the audio body, mapping provider failures onto
// ErrRateLimited and ErrTimeout.
func doAudioRequest(ctx context.Context, client *httpclient.HTTPClient, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", provider, ErrTimeout)
		}
		return nil, fmt.Errorf("%s request: %w", provider, err)
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s: %w", provider, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s error %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", provider, ErrTimeout)
		}
		return nil, fmt.Errorf("%s read audio: %w", provider, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%s: %w", provider, ErrEmptyAudio)
	}
	return audio, nil
}
