package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/httpclient"
)

var (
	ErrEmptyURL        = errors.New("source URL is empty")
	ErrEmptyText       = errors.New("extracted source text is empty")
	ErrUnsupportedFile = errors.New("unsupported source file type")
)

// maxBodyBytes caps downloaded pages and documents.
const maxBodyBytes = 32 << 20

// Fetcher downloads a URL and extracts its readable text.
type Fetcher struct {
	client *httpclient.HTTPClient
}

// NewFetcher creates a fetcher using browser-like headers.
func NewFetcher() *Fetcher {
	return NewFetcherWithClient(httpclient.NewClient(httpclient.BrowserClient))
}

func NewFetcherWithClient(client *httpclient.HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// FromURL fetches an article page, PDF or plain-text document and returns it as a source.
// The document type is decided by the URL's extension first, then by the Content-Type header.
func (f *Fetcher) FromURL(ctx context.Context, rawURL string) (domain.Source, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return domain.Source{}, ErrEmptyURL
	}

	body, contentType, err := f.fetch(ctx, rawURL)
	if err != nil {
		return domain.Source{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	src := domain.Source{Kind: domain.URLSource, URL: rawURL}

	switch documentType(rawURL, contentType) {
	case "pdf":
		src.Text, err = ExtractTextFromPDFBytes(body)
		src.Title = titleFromPath(mustParseURLPath(rawURL))
	case "txt":
		src.Text = strings.TrimSpace(string(body))
		src.Title = titleFromPath(mustParseURLPath(rawURL))
	default:
		html := string(body)
		pageURL, _ := url.Parse(rawURL)
		src.Text, err = ExtractTextFromPage(html, pageURL)
		if title, titleErr := ExtractTitle(html); titleErr == nil {
			src.Title = title
		}
	}
	if err != nil {
		return domain.Source{}, err
	}
	if src.Text == "" {
		return domain.Source{}, ErrEmptyText
	}

	return src, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := f.client.Get(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", err
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// FromFile reads an uploaded PDF, TXT or Markdown file.
func FromFile(filePath string) (domain.Source, error) {
	src := domain.Source{Kind: domain.FileSource, URL: filePath, Title: titleFromPath(filePath)}

	var err error
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		src.Text, err = ExtractTextFromPDFFile(filePath)
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(filePath)
		src.Text = strings.TrimSpace(string(data))
	default:
		return domain.Source{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, filePath)
	}
	if err != nil {
		return domain.Source{}, err
	}
	if src.Text == "" {
		return domain.Source{}, ErrEmptyText
	}

	return src, nil
}

// FromText wraps pasted text.
func FromText(title, text string) (domain.Source, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Source{}, ErrEmptyText
	}
	return domain.Source{Kind: domain.TextSource, Title: strings.TrimSpace(title), Text: text}, nil
}

func documentType(rawURL, contentType string) string {
	switch strings.ToLower(path.Ext(mustParseURLPath(rawURL))) {
	case ".pdf":
		return "pdf"
	case ".txt":
		return "txt"
	}

	lct := strings.ToLower(contentType)
	switch {
	case strings.Contains(lct, "application/pdf"):
		return "pdf"
	case strings.Contains(lct, "text/plain"):
		return "txt"
	default:
		return "html"
	}
}

func mustParseURLPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func titleFromPath(p string) string {
	base := path.Base(filepath.ToSlash(p))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
