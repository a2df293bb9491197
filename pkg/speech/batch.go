package speech

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
)

// DefaultLineTimeout bounds each line's synthesis request.
const DefaultLineTimeout = 30 * time.Second

// LineError identifies the dialogue line whose synthesis aborted the batch.
type LineError struct {
	Index  int
	LineID string
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("synthesize line %d (%s): %v", e.Index, e.LineID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// VoiceMap assigns a voice to every host of a script.
type VoiceMap struct {
	byHost   map[string]string
	defaults []string
}

// NewVoiceMap creates a map with explicit host voices and fallbacks for unlisted hosts.
func NewVoiceMap(byHost map[string]string, defaults []string) *VoiceMap {
	if len(defaults) == 0 {
		defaults = []string{"alloy", "onyx"}
	}
	return &VoiceMap{byHost: byHost, defaults: defaults}
}

// Assign returns host -> voice. Hosts without an explicit voice take the defaults in
// rotation, in the order given (first-seen order of the script).
func (v *VoiceMap) Assign(hosts []string) map[string]string {
	out := make(map[string]string, len(hosts))
	next := 0
	for _, host := range hosts {
		if voice, ok := v.byHost[host]; ok && voice != "" {
			out[host] = voice
			continue
		}
		out[host] = v.defaults[next%len(v.defaults)]
		next++
	}
	return out
}

// SynthesizeAll voices every line concurrently, one request per line, each bounded by its
// own timeout (DefaultLineTimeout when timeout <= 0).
//
// It is fail-fast: the first failing line cancels the others and its *LineError is returned.
// There is no partial result. On success clips[i] is the audio for lines[i].
func SynthesizeAll(ctx context.Context, synth Synthesizer, lines []domain.DialogueLine, voices map[string]string, timeout time.Duration) ([][]byte, error) {
	if timeout <= 0 {
		timeout = DefaultLineTimeout
	}

	clips := make([][]byte, len(lines))
	g, gctx := errgroup.WithContext(ctx)

	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			lineCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			audio, err := synth.Synthesize(lineCtx, line.Content, voices[line.Host])
			if err != nil {
				return &LineError{Index: i, LineID: line.ID, Err: err}
			}
			clips[i] = audio
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}
