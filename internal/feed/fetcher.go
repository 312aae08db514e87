// Package feed turns a news domain into normalized items. It tries the
// configured feeds, then well known feed paths, then scrapes the front page.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/telemetry"
)

// FeedLister returns the configured feed URLs for a domain.
type FeedLister interface {
	Feeds(domain string) []string
}

// Config tunes the HTML fallback.
type Config struct {
	MaxHTMLLinks int
	PageTimeout  time.Duration
}

// Fetcher produces items for one domain at a time. It is safe for concurrent use.
type Fetcher struct {
	pages   news.PageFetcher
	catalog FeedLister
	hasher  news.Hasher
	clock   news.Clock
	logger  *zap.Logger
	cfg     Config
}

// New builds a Fetcher.
func New(
	pages news.PageFetcher,
	catalog FeedLister,
	hasher news.Hasher,
	clock news.Clock,
	logger *zap.Logger,
	cfg Config,
) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxHTMLLinks <= 0 {
		cfg.MaxHTMLLinks = 25
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 8 * time.Second
	}
	return &Fetcher{
		pages:   pages,
		catalog: catalog,
		hasher:  hasher,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
	}
}

// guessedFeedPaths are tried on the bare domain when no configured feed yields entries.
var guessedFeedPaths = []string{"/rss", "/feed", "/feeds", "/rss.xml", "/feed.xml"}

// Fetch returns the items discovered for domain. Individual fetch and parse
// failures only advance to the next fallback; the error is non-nil only when
// ctx ends.
func (f *Fetcher) Fetch(ctx context.Context, domain string) ([]news.Item, error) {
	domain = news.BareDomain(domain)
	logger := f.logger.With(zap.String("source", domain))
	tried := make(map[string]bool)

	candidates := f.catalog.Feeds(domain)
	for _, p := range guessedFeedPaths {
		candidates = append(candidates, "https://"+domain+p)
	}

	for _, feedURL := range candidates {
		if tried[feedURL] {
			continue
		}
		tried[feedURL] = true
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", domain, err)
		}
		items := f.tryFeed(ctx, logger, domain, feedURL)
		if len(items) > 0 {
			logger.Info("parsed feed", zap.String("feed_url", feedURL), zap.Int("items", len(items)))
			telemetry.ObserveSourceFetch(domain, telemetry.SourceOK, len(items))
			return items, nil
		}
	}

	logger.Info("falling back to html scraping")
	items, err := f.scrapeFrontPage(ctx, logger, domain)
	if err != nil {
		return nil, err
	}
	status := telemetry.SourceOK
	if len(items) == 0 {
		status = telemetry.SourceEmpty
	}
	telemetry.ObserveSourceFetch(domain, status, len(items))
	return items, nil
}

func (f *Fetcher) tryFeed(ctx context.Context, logger *zap.Logger, domain, feedURL string) []news.Item {
	page, err := f.pages.Fetch(ctx, feedURL)
	if err != nil {
		logger.Debug("feed fetch failed", zap.String("feed_url", feedURL), zap.Error(err))
		return nil
	}
	if !page.OK() || len(page.Body) == 0 {
		logger.Debug("feed unavailable", zap.String("feed_url", feedURL), zap.Int("status", page.StatusCode))
		return nil
	}
	items, err := parseFeed(gofeed.NewParser(), page.Body, feedURL, domain, f.clock.Now(), f.hasher)
	if err != nil {
		logger.Warn("feed parse failed", zap.String("feed_url", feedURL), zap.Error(err))
		return nil
	}
	return items
}
