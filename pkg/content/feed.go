package content

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

// FeedReader lists article sources from an RSS/Atom feed.
type FeedReader struct {
	client     *httpclient.HTTPClient
	feedParser *gofeed.Parser
}

// NewFeedReader creates a feed reader
func NewFeedReader() *FeedReader {
	return &FeedReader{
		client:     httpclient.NewClient(httpclient.CloudflareClient),
		feedParser: gofeed.NewParser(),
	}
}

// Latest returns up to max items (all when max <= 0) in feed order. Each source's Text is the
// item's content, or its description when the feed carries no full content; items whose text
// is empty still carry their link so callers can fetch the page.
func (r *FeedReader) Latest(ctx context.Context, feedURL string, max int) ([]domain.Source, error) {
	resp, err := r.client.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status code: %d", resp.StatusCode)
	}

	feed, err := r.feedParser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed contains no items")
	}

	sources := make([]domain.Source, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || (item.Link == "" && item.Content == "" && item.Description == "") {
			continue
		}

		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}

		sources = append(sources, domain.Source{
			Kind:  domain.FeedSource,
			Title: strings.TrimSpace(item.Title),
			Text:  HTMLToText(body),
			URL:   strings.TrimSpace(item.Link),
		})
		if max > 0 && len(sources) == max {
			break
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no usable items found in feed")
	}
	return sources, nil
}
