package content

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

// urlSet represents a regular sitemap structure
type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
}

// sitemapIndex represents a sitemap index structure
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Location string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapReader lists article URLs from a sitemap or a sitemap index.
type SitemapReader struct {
	client *httpclient.HTTPClient
}

func NewSitemapReader() *SitemapReader {
	return &SitemapReader{client: httpclient.NewClient(httpclient.CloudflareClient)}
}

// Latest returns up to max URL sources (all when max <= 0) in sitemap order. Sources carry only
// the URL; callers fetch the page with Fetcher.FromURL. Child sitemaps of an index that fail
// to load are skipped.
func (r *SitemapReader) Latest(ctx context.Context, sitemapURL string, max int) ([]domain.Source, error) {
	if strings.TrimSpace(sitemapURL) == "" {
		return nil, ErrEmptyURL
	}

	locs, err := r.locations(ctx, sitemapURL, true)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("no entries found in sitemap %s", sitemapURL)
	}

	if max > 0 && len(locs) > max {
		locs = locs[:max]
	}
	sources := make([]domain.Source, 0, len(locs))
	for _, loc := range locs {
		sources = append(sources, domain.Source{Kind: domain.URLSource, URL: loc})
	}
	return sources, nil
}

// locations follows one level of sitemap index.
func (r *SitemapReader) locations(ctx context.Context, sitemapURL string, followIndex bool) ([]string, error) {
	body, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	// Check if it's a sitemap index (contains <sitemapindex>)
	if bytes.Contains(body, []byte("<sitemapindex")) {
		if !followIndex {
			return nil, fmt.Errorf("nested sitemap index %s", sitemapURL)
		}

		var index sitemapIndex
		if err := xml.Unmarshal(body, &index); err != nil {
			return nil, fmt.Errorf("failed to decode sitemap index XML: %w", err)
		}

		var all []string
		for _, ref := range index.Sitemaps {
			loc := strings.TrimSpace(ref.Location)
			if loc == "" {
				continue
			}
			child, err := r.locations(ctx, loc, false)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			all = append(all, child...)
		}
		return all, nil
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap XML: %w", err)
	}

	locs := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Location); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

func (r *SitemapReader) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	resp, err := r.client.Get(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap %s: unexpected status code: %d", sitemapURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap: %w", err)
	}
	return body, nil
}
