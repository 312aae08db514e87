package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/crawl"
	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/telemetry"
)

// Crawler runs a crawl over domains.
type Crawler interface {
	Run(ctx context.Context, domains []string, concurrency int) (crawl.Result, error)
}

// Prioritizer enqueues unsummarized items.
type Prioritizer interface {
	Prioritize(ctx context.Context) (int, error)
}

// Summarizer drains the summarization queue.
type Summarizer interface {
	RunOnce(ctx context.Context, concurrency int) (int, error)
	RetryFailed(ctx context.Context) (requeued, dropped int, err error)
}

// Options tunes the server.
type Options struct {
	Version        string
	AuthEnabled    bool
	APIKey         string
	RequestTimeout time.Duration
	// TriggerCrawl mounts POST /trigger-crawl for external schedulers.
	TriggerCrawl bool
}

// Server wires HTTP handlers to the pipeline components.
type Server struct {
	router      chi.Router
	store       news.Store
	crawler     Crawler
	prioritizer Prioritizer
	summarizer  Summarizer
	clock       news.Clock
	opts        Options
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store news.Store,
	crawler Crawler,
	prioritizer Prioritizer,
	summarizer Summarizer,
	clock news.Clock,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		store:       store,
		crawler:     crawler,
		prioritizer: prioritizer,
		summarizer:  summarizer,
		clock:       clock,
		opts:        opts,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		if opts.AuthEnabled {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Route("/news", func(r chi.Router) {
			r.With(timeoutMiddleware(opts.RequestTimeout)).Get("/", s.listNews)
			r.With(timeoutMiddleware(opts.RequestTimeout)).Get("/{id}", s.getNews)
			r.Post("/crawl", s.crawl)
			r.Post("/cleanup", s.cleanup)
			r.Post("/prioritize", s.prioritize)
			r.Post("/summarize", s.summarize)
		})
		if opts.TriggerCrawl {
			r.Post("/trigger-crawl", s.triggerCrawl)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "newsdigest",
		"version": s.opts.Version,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
