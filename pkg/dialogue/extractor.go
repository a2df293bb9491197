// Package dialogue turns an assistant-generated podcast script into ordered speaker-tagged lines.
//
// The only supported convention is a double-bracketed speaker tag followed by a colon:
//
//	[[host1]]: Welcome to the show.]]
//	[[host2]]: Thanks for having me.
//
// A line's content runs until the next speaker tag or the end of the text. A closing "]]"
// ends the content early; anything between it and the next tag is ignored.
// Angle-bracket tags such as <host1>...</host> are not recognised.
package dialogue

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
)

const closingMarker = "]]"

var speakerTag = regexp.MustCompile(`\[\[([^\[\]\n]*)\]\]\s*:`)

// IDFunc returns the identifier for the seq-th emitted line (starting at 1).
type IDFunc func(seq int) string

// SequentialIDs derives identifiers from the owning podcast id and the line number.
// An empty podcast id yields "line-1", "line-2", ...
func SequentialIDs(podcastID string) IDFunc {
	prefix := strings.TrimSpace(podcastID)
	if prefix == "" {
		prefix = "line"
	}
	return func(seq int) string {
		return fmt.Sprintf("%s-%d", prefix, seq)
	}
}

// RandomIDs assigns a fresh UUID to every line.
func RandomIDs() IDFunc {
	return func(int) string {
		return uuid.NewString()
	}
}

// Extractor parses scripts into dialogue lines using an injected identifier source.
type Extractor struct {
	newID IDFunc
}

// NewExtractor creates an extractor. A nil newID falls back to SequentialIDs("").
func NewExtractor(newID IDFunc) *Extractor {
	if newID == nil {
		newID = SequentialIDs("")
	}
	return &Extractor{newID: newID}
}

// Extract parses text with sequential identifiers.
func Extract(text string) []domain.DialogueLine {
	return NewExtractor(nil).Extract(text)
}

// Extract returns the dialogue lines found in text, in source order.
//
// It never fails: entries whose speaker or content is empty after trimming are dropped.
// Text without any speaker tag yields an empty, non-nil slice.
func (e *Extractor) Extract(text string) []domain.DialogueLine {
	lines := make([]domain.DialogueLine, 0)

	matches := speakerTag.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		host := strings.TrimSpace(text[m[2]:m[3]])
		content := body(text[m[1]:end])
		if host == "" || content == "" {
			continue
		}

		lines = append(lines, domain.DialogueLine{
			ID:      e.newID(len(lines) + 1),
			Host:    host,
			Content: content,
		})
	}

	return lines
}

// body trims raw entry text and cuts it at the closing marker, if any.
func body(raw string) string {
	if idx := strings.Index(raw, closingMarker); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.TrimSpace(raw)
}

// Format renders lines back into the canonical convention, one entry per line.
func Format(lines []domain.DialogueLine) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[[%s]]: %s%s", line.Host, line.Content, closingMarker)
	}
	return b.String()
}

// Hosts returns the distinct speakers in the order they first appear.
func Hosts(lines []domain.DialogueLine) []string {
	seen := make(map[string]bool, len(lines))
	hosts := make([]string, 0)
	for _, line := range lines {
		if seen[line.Host] {
			continue
		}
		seen[line.Host] = true
		hosts = append(hosts, line.Host)
	}
	return hosts
}
