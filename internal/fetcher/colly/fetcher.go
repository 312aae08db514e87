// Package collyfetcher implements news.PageFetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// DomainLimiter paces requests per host.
type DomainLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxRetries    int
	Limiter       DomainLimiter
}

// Fetcher implements news.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

var _ news.PageFetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	return NewWithTransport(cfg, newHTTPTransport())
}

// NewWithTransport builds a Fetcher on top of a caller supplied transport.
func NewWithTransport(cfg Config, base http.RoundTripper) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	// Non-2xx answers reach OnResponse so callers can classify them.
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newRetryTransport(base, cfg.MaxRetries))
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	// Clones share the HTTP backend, so the client timeout is set once here.
	// Shorter per-call deadlines come from the request context.
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET. Transport failures are errors; any HTTP
// status, including 4xx and 5xx, is returned in the page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (news.Page, error) {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return news.Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
	}

	var (
		page     news.Page
		fetchErr error
	)
	collector := f.buildCollector(ctx, &page, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return news.Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return page, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, page *news.Page, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, page, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, page *news.Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		var header http.Header
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		*page = news.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Header:     header,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctxErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
