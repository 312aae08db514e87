// Package scheduler runs the in-process background loops of the interval
// platform: periodic crawls and, optionally, the continuous summarizer.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/crawl"
)

// Defaults for the interval platform.
const (
	DefaultCrawlInterval = 40 * time.Minute
	DefaultErrorBackoff  = 10 * time.Minute
)

// Crawler runs one crawl over the configured domains.
type Crawler interface {
	Run(ctx context.Context, domains []string, concurrency int) (crawl.Result, error)
}

// Loop is a long-running background task such as the summarizer worker.
type Loop interface {
	Run(ctx context.Context) error
}

// Config controls loop timing.
type Config struct {
	CrawlInterval    time.Duration
	ErrorBackoff     time.Duration
	CrawlConcurrency int
}

// Scheduler drives the crawl cycle and any extra loops until its context ends.
type Scheduler struct {
	crawler Crawler
	loops   []Loop
	cfg     Config
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Scheduler. Extra loops, typically the summarizer pool, run
// alongside the crawl cycle.
func New(crawler Crawler, cfg Config, logger *zap.Logger, loops ...Loop) *Scheduler {
	if cfg.CrawlInterval <= 0 {
		cfg.CrawlInterval = DefaultCrawlInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		crawler: crawler,
		loops:   loops,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run starts every loop and blocks until ctx finishes and all loops return.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, l := range s.loops {
		wg.Add(1)
		go func(loop Loop) {
			defer wg.Done()
			if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("background loop exited", zap.Error(err))
			}
		}(l)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.crawlLoop(ctx)
	}()
	wg.Wait()
}

func (s *Scheduler) crawlLoop(ctx context.Context) {
	s.logger.Info("crawl loop started",
		zap.Duration("interval", s.cfg.CrawlInterval),
		zap.Duration("error_backoff", s.cfg.ErrorBackoff),
	)
	for {
		wait := s.cfg.CrawlInterval
		res, err := s.crawler.Run(ctx, nil, s.cfg.CrawlConcurrency)
		switch {
		case ctx.Err() != nil:
			s.logger.Info("crawl loop stopped")
			return
		case err != nil:
			s.logger.Error("scheduled crawl failed",
				zap.Error(err),
				zap.Duration("retry_in", s.cfg.ErrorBackoff),
			)
			wait = s.cfg.ErrorBackoff
		default:
			s.logger.Info("scheduled crawl finished",
				zap.Int("upserted", res.Upserted),
				zap.Int("queued", res.Queued),
				zap.Int("removed", res.Removed),
			)
		}
		if err := s.sleep(ctx, wait); err != nil {
			s.logger.Info("crawl loop stopped")
			return
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
