package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustland/ting.fm-sub000/pkg/config"
	"github.com/dustland/ting.fm-sub000/pkg/content"
	"github.com/dustland/ting.fm-sub000/pkg/dialogue"
	"github.com/dustland/ting.fm-sub000/pkg/domain"
	"github.com/dustland/ting.fm-sub000/pkg/observability"
)

const usage = `usage: tingfm <command> [flags]

commands:
  extract   parse a script into dialogue lines (JSON)
  merge     merge stored audio segments into one asset
  generate  build a podcast from text, a URL, a file, a feed or a sitemap
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.WithRunID(observability.InitLogger(cfg.LogLevel, cfg.LogPretty))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	logger = logger.With().Str("command", cmd).Logger()

	start := time.Now()
	switch cmd {
	case "extract":
		err = runExtract(args, os.Stdout)
	case "merge":
		err = runMerge(ctx, cfg, logger, args, os.Stdout)
	case "generate":
		err = runGenerate(ctx, cfg, logger, args, os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		stop()
		logger.Fatal().Err(err).Dur("duration", time.Since(start)).Msg("Command failed")
	}
	logger.Info().Dur("duration", time.Since(start)).Msg("Done")
}

func runExtract(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	var (
		in        = fs.String("in", "-", "Script file to parse (- for stdin)")
		podcastID = fs.String("podcast", "", "Podcast ID used to number lines")
		random    = fs.Bool("random-ids", false, "Use random UUID line IDs instead of sequential ones")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		raw []byte
		err error
	)
	if *in == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*in)
	}
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	ids := dialogue.SequentialIDs(*podcastID)
	if *random {
		ids = dialogue.RandomIDs()
	}
	return writeJSON(out, dialogue.NewExtractor(ids).Extract(string(raw)))
}

func runMerge(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	var (
		podcastID = fs.String("podcast", "", "Podcast ID owning the segments")
		list      = fs.String("segments", "", "Comma-separated segment locators, in playback order")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var segments []domain.AudioSegment
	for _, loc := range strings.Split(*list, ",") {
		if loc = strings.TrimSpace(loc); loc != "" {
			segments = append(segments, domain.AudioSegment{Locator: loc})
		}
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, err := newService(cfg, b, false, logger)
	if err != nil {
		return err
	}

	asset, err := svc.Remerge(ctx, *podcastID, segments)
	if err != nil {
		return err
	}
	return writeJSON(out, asset)
}

func runGenerate(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	var (
		podcastID = fs.String("podcast", "", "Podcast ID")
		title     = fs.String("title", "", "Title for -text sources")
		textFile  = fs.String("text", "", "Plain text file to turn into a podcast")
		pageURL   = fs.String("url", "", "Article or document URL")
		file      = fs.String("file", "", "Local PDF, TXT or Markdown file")
		feedURL   = fs.String("feed", "", "RSS/Atom feed URL")
		sitemap   = fs.String("sitemap", "", "Sitemap (or sitemap index) URL listing articles")
		max       = fs.Int("max", 1, "Feed or sitemap items to generate (one podcast each, IDs suffixed -1, -2, ...)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*podcastID) == "" {
		return fmt.Errorf("-podcast is required")
	}

	sources, err := loadSources(ctx, sourceFlags{
		title:    *title,
		textFile: *textFile,
		pageURL:  *pageURL,
		file:     *file,
		feedURL:  *feedURL,
		sitemap:  *sitemap,
		max:      *max,
	})
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, err := newService(cfg, b, true, logger)
	if err != nil {
		return err
	}

	podcasts := make([]*domain.Podcast, 0, len(sources))
	for i, src := range sources {
		id := *podcastID
		if len(sources) > 1 {
			id = fmt.Sprintf("%s-%d", *podcastID, i+1)
		}
		p, err := svc.Generate(ctx, id, src)
		if err != nil {
			return fmt.Errorf("generate %s: %w", id, err)
		}
		podcasts = append(podcasts, p)
	}

	if len(podcasts) == 1 {
		return writeJSON(out, podcasts[0])
	}
	return writeJSON(out, podcasts)
}

type sourceFlags struct {
	title, textFile, pageURL, file, feedURL, sitemap string
	max                                              int
}

func loadSources(ctx context.Context, f sourceFlags) ([]domain.Source, error) {
	set := 0
	for _, v := range []string{f.textFile, f.pageURL, f.file, f.feedURL, f.sitemap} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of -text, -url, -file, -feed or -sitemap is required")
	}

	fetcher := content.NewFetcher()

	switch {
	case f.textFile != "":
		raw, err := os.ReadFile(f.textFile)
		if err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
		src, err := content.FromText(f.title, string(raw))
		if err != nil {
			return nil, err
		}
		return []domain.Source{src}, nil
	case f.pageURL != "":
		src, err := fetcher.FromURL(ctx, f.pageURL)
		if err != nil {
			return nil, err
		}
		return []domain.Source{src}, nil
	case f.file != "":
		src, err := content.FromFile(f.file)
		if err != nil {
			return nil, err
		}
		return []domain.Source{src}, nil
	case f.feedURL != "":
		sources, err := content.NewFeedReader().Latest(ctx, f.feedURL, f.max)
		if err != nil {
			return nil, err
		}
		return fillLinkOnly(ctx, fetcher, sources)
	default:
		sources, err := content.NewSitemapReader().Latest(ctx, f.sitemap, f.max)
		if err != nil {
			return nil, err
		}
		return fillLinkOnly(ctx, fetcher, sources)
	}
}

// fillLinkOnly reads the article behind every source that carries just a link,
// as summary-only feeds and sitemaps do.
func fillLinkOnly(ctx context.Context, fetcher *content.Fetcher, sources []domain.Source) ([]domain.Source, error) {
	for i, src := range sources {
		if strings.TrimSpace(src.Text) != "" || src.URL == "" {
			continue
		}
		page, err := fetcher.FromURL(ctx, src.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", src.URL, err)
		}
		if src.Title != "" {
			page.Title = src.Title
		}
		sources[i] = page
	}
	return sources, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
