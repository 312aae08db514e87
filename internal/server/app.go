// Package server builds the application's dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/api"
	"github.com/JakeFAU/newsdigest/internal/clock/system"
	"github.com/JakeFAU/newsdigest/internal/config"
	"github.com/JakeFAU/newsdigest/internal/crawl"
	"github.com/JakeFAU/newsdigest/internal/extract"
	"github.com/JakeFAU/newsdigest/internal/feed"
	collyfetcher "github.com/JakeFAU/newsdigest/internal/fetcher/colly"
	"github.com/JakeFAU/newsdigest/internal/hash/sha256"
	"github.com/JakeFAU/newsdigest/internal/id/uuid"
	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/policy/ratelimit"
	queueMemory "github.com/JakeFAU/newsdigest/internal/queue/memory"
	queueRedis "github.com/JakeFAU/newsdigest/internal/queue/redis"
	"github.com/JakeFAU/newsdigest/internal/scheduler"
	"github.com/JakeFAU/newsdigest/internal/scorer"
	"github.com/JakeFAU/newsdigest/internal/sources"
	memoryStorage "github.com/JakeFAU/newsdigest/internal/storage/memory"
	pgstore "github.com/JakeFAU/newsdigest/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/newsdigest/internal/storage/sqlite"
	"github.com/JakeFAU/newsdigest/internal/summarizer"
	"github.com/JakeFAU/newsdigest/internal/summarizer/gemini"
	"github.com/JakeFAU/newsdigest/internal/summarizer/openai"
	"github.com/JakeFAU/newsdigest/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// ErrSummarizerDisabled is returned when no summarizer API key is configured.
var ErrSummarizerDisabled = errors.New("summarizer disabled: summarizer.api_key is not set")

// App contains the application's dependencies.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	clock       news.Clock
	store       news.Store
	queue       news.Queue
	redis       *goredis.Client
	catalog     *sources.Catalog
	crawler     *crawl.Orchestrator
	prioritizer *scorer.Prioritizer
	pool        *worker.Pool
	gemini      *gemini.Client
	apiServer   *api.Server

	closeOnce sync.Once
}

// Build creates the application's dependencies. On error everything already
// opened is released.
func Build(ctx context.Context, cfg config.Config, version string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	if err := a.build(ctx, version); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, version string) error {
	a.logger.Info("building application dependencies",
		zap.String("store", a.cfg.Store.Backend),
		zap.String("queue", a.cfg.Queue.Backend),
		zap.String("summarizer", a.cfg.Summarizer.Service),
		zap.String("platform", a.cfg.Platform.Mode),
	)
	var err error
	if a.store, err = a.setupStore(ctx); err != nil {
		return err
	}
	if a.queue, err = a.setupQueue(ctx); err != nil {
		return err
	}
	if a.catalog, err = a.setupCatalog(); err != nil {
		return err
	}

	pages := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Crawler.UserAgent,
		RespectRobots: a.cfg.Crawler.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
		MaxRetries:    a.cfg.HTTP.MaxRetries,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.Crawler.DomainRPS,
			DefaultBurst: a.cfg.Crawler.DomainBurst,
		}),
	})
	feeds := feed.New(pages, a.catalog, sha256.New(), a.clock, a.logger.Named("feed"), feed.Config{
		MaxHTMLLinks: a.cfg.Crawler.MaxHTMLLinks,
		PageTimeout:  a.cfg.PageTimeout(),
	})
	a.prioritizer = scorer.NewPrioritizer(a.store, a.queue, a.logger.Named("scorer"))
	a.crawler = crawl.New(feeds, a.store, a.prioritizer, a.catalog, a.cfg.Crawler.BatchSize, a.logger.Named("crawl"))

	client, err := a.setupSummarizer(ctx)
	switch {
	case errors.Is(err, ErrSummarizerDisabled):
		a.logger.Warn("summarizer not configured; summarize requests will fail")
	case err != nil:
		return err
	default:
		a.pool = worker.New(
			a.store,
			a.queue,
			extract.New(pages, a.cfg.ExtractTimeout()),
			client,
			ratelimit.NewInterval("summarizer", a.cfg.RateInterval()),
			worker.Config{
				Concurrency:       a.cfg.Worker.Concurrency,
				MaxAttempts:       a.cfg.Worker.MaxAttempts,
				RetryPenalty:      a.cfg.Worker.RetryPenalty,
				HousekeepingEvery: a.cfg.Worker.HousekeepingEvery,
				IdleSleep:         a.cfg.IdleSleep(),
			},
			a.logger.Named("worker"),
		)
	}

	var summarize api.Summarizer = disabledSummarizer{}
	if a.pool != nil {
		summarize = a.pool
	}
	a.apiServer = api.NewServer(
		a.store,
		a.crawler,
		a.prioritizer,
		summarize,
		a.clock,
		api.Options{
			Version:        version,
			AuthEnabled:    a.cfg.Auth.Enabled,
			APIKey:         a.cfg.Auth.APIKey,
			RequestTimeout: a.cfg.RequestTimeout(),
			TriggerCrawl:   a.cfg.Platform.Mode == config.PlatformTrigger,
		},
		a.logger.Named("api"),
	)
	return nil
}

func (a *App) setupStore(ctx context.Context) (news.Store, error) {
	ids := uuid.New()
	switch a.cfg.Store.Backend {
	case config.BackendPostgres:
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             a.cfg.Store.DSN,
			Table:           a.cfg.Store.Table,
			MaxConns:        a.cfg.Store.MaxConns,
			MinConns:        a.cfg.Store.MinConns,
			MaxConnLifetime: time.Duration(a.cfg.Store.MaxConnLifetimeSeconds) * time.Second,
			Migrate:         a.cfg.Store.Migrate,
		}, ids)
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		a.logger.Info("using postgres store", zap.String("table", a.cfg.Store.Table))
		return store, nil
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, sqlitestore.Config{
			DSN:     a.cfg.Store.DSN,
			Table:   a.cfg.Store.Table,
			Migrate: a.cfg.Store.Migrate,
		}, ids)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		a.logger.Info("using sqlite store", zap.String("table", a.cfg.Store.Table))
		return store, nil
	default:
		a.logger.Info("using in-memory store")
		return memoryStorage.NewStore(ids), nil
	}
}

func (a *App) setupQueue(ctx context.Context) (news.Queue, error) {
	if a.cfg.Queue.Backend != config.BackendRedis {
		a.logger.Info("using in-memory queue")
		return queueMemory.NewQueue(a.clock, a.cfg.FailedTTL()), nil
	}
	client, err := queueRedis.NewClient(ctx, queueRedis.ClientConfig{
		URL:      a.cfg.Queue.RedisURL,
		Addr:     a.cfg.Queue.RedisAddr,
		Password: a.cfg.Queue.RedisPassword,
		DB:       a.cfg.Queue.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis queue init failed: %w", err)
	}
	a.redis = client
	a.logger.Info("using redis queue", zap.String("key_prefix", a.cfg.Queue.KeyPrefix))
	return queueRedis.New(client, a.clock, queueRedis.Options{
		KeyPrefix: a.cfg.Queue.KeyPrefix,
		FailedTTL: a.cfg.FailedTTL(),
	}), nil
}

func (a *App) setupCatalog() (*sources.Catalog, error) {
	catalog := sources.Default()
	if a.cfg.Sources.File != "" {
		loaded, err := sources.Load(a.cfg.Sources.File)
		if err != nil {
			return nil, fmt.Errorf("sources init failed: %w", err)
		}
		catalog = loaded
	}
	if len(a.cfg.Sources.Domains) > 0 {
		restricted, err := catalog.Restrict(a.cfg.Sources.Domains)
		if err != nil {
			return nil, fmt.Errorf("sources init failed: %w", err)
		}
		catalog = restricted
	}
	a.logger.Info("source catalog loaded", zap.Strings("domains", catalog.Domains()))
	return catalog, nil
}

func (a *App) setupSummarizer(ctx context.Context) (news.Summarizer, error) {
	opts := summarizer.Options{
		APIKey:      a.cfg.Summarizer.APIKey,
		Model:       a.cfg.Summarizer.Model,
		Endpoint:    a.cfg.Summarizer.Endpoint,
		Prompt:      a.cfg.Summarizer.Prompt,
		MaxTokens:   a.cfg.Summarizer.MaxTokens,
		Temperature: a.cfg.Summarizer.Temperature,
		TopP:        a.cfg.Summarizer.TopP,
		Timeout:     a.cfg.SummarizerTimeout(),
	}
	if opts.APIKey == "" {
		return nil, ErrSummarizerDisabled
	}
	switch a.cfg.Summarizer.Service {
	case config.ServiceGemini:
		client, err := gemini.New(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("gemini summarizer init failed: %w", err)
		}
		a.gemini = client
		return client, nil
	case config.ServiceOpenAI:
		client, err := openai.NewOpenAI(opts, nil)
		if err != nil {
			return nil, fmt.Errorf("openai summarizer init failed: %w", err)
		}
		return client, nil
	default:
		client, err := openai.NewGroq(opts, nil)
		if err != nil {
			return nil, fmt.Errorf("groq summarizer init failed: %w", err)
		}
		return client, nil
	}
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Store returns the record store.
func (a *App) Store() news.Store {
	return a.store
}

// Crawler returns the crawl orchestrator.
func (a *App) Crawler() *crawl.Orchestrator {
	return a.crawler
}

// Prioritizer returns the queue prioritizer.
func (a *App) Prioritizer() *scorer.Prioritizer {
	return a.prioritizer
}

// Summarizer returns the worker pool, or ErrSummarizerDisabled.
func (a *App) Summarizer() (*worker.Pool, error) {
	if a.pool == nil {
		return nil, ErrSummarizerDisabled
	}
	return a.pool, nil
}

// Cleanup deletes rows older than days by crawl date, or by publish date when byPublish is set.
func (a *App) Cleanup(ctx context.Context, days int, byPublish bool) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be > 0")
	}
	cutoff := news.RetentionCutoff(a.clock.Now(), days)
	deleted, err := a.store.DeleteOlderThan(ctx, cutoff, byPublish)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	return deleted, nil
}

// Run serves the HTTP API and the configured platform hooks until ctx is
// canceled or the process receives SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var background sync.WaitGroup
	if a.cfg.Platform.Mode == config.PlatformInterval {
		sched := a.newScheduler()
		background.Add(1)
		go func() {
			defer background.Done()
			sched.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	background.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func (a *App) newScheduler() *scheduler.Scheduler {
	var loops []scheduler.Loop
	if a.cfg.Platform.Summarize {
		if a.pool != nil {
			loops = append(loops, a.pool)
		} else {
			a.logger.Warn("platform.summarize ignored", zap.Error(ErrSummarizerDisabled))
		}
	}
	return scheduler.New(a.crawler, scheduler.Config{
		CrawlInterval:    a.cfg.CrawlInterval(),
		ErrorBackoff:     a.cfg.ErrorBackoff(),
		CrawlConcurrency: a.cfg.Platform.CrawlConcurrency,
	}, a.logger.Named("scheduler"), loops...)
}

// Close releases every opened resource. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.gemini != nil {
			if err := a.gemini.Close(); err != nil {
				a.logger.Warn("gemini client close failed", zap.Error(err))
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.logger.Warn("redis client close failed", zap.Error(err))
			}
		}
		if a.store != nil {
			a.store.Close()
		}
		a.logger.Info("shutdown complete")
	})
}

type disabledSummarizer struct{}

func (disabledSummarizer) RunOnce(context.Context, int) (int, error) {
	return 0, ErrSummarizerDisabled
}

func (disabledSummarizer) RetryFailed(context.Context) (int, int, error) {
	return 0, 0, ErrSummarizerDisabled
}
