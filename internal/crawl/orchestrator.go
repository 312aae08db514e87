// Package crawl runs the fetchers for a set of domains, persists what they
// find and hands the result to the prioritizer.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/telemetry"
)

// Concurrency bounds for Run.
const (
	DefaultConcurrency = 3
	MaxConcurrency     = 10
	DefaultBatchSize   = 50
)

// DomainFetcher discovers the items published by one domain.
type DomainFetcher interface {
	Fetch(ctx context.Context, domain string) ([]news.Item, error)
}

// Prioritizer enqueues unsummarized items.
type Prioritizer interface {
	Prioritize(ctx context.Context) (int, error)
}

// Catalog supplies the default domain list.
type Catalog interface {
	Domains() []string
}

// Result summarizes one crawl run.
type Result struct {
	Upserted int `json:"upserted"`
	Queued   int `json:"queued"`
	Removed  int `json:"removed"`
}

// Orchestrator fans out over domains and persists their items.
type Orchestrator struct {
	fetcher     DomainFetcher
	store       news.Store
	prioritizer Prioritizer
	catalog     Catalog
	batchSize   int
	logger      *zap.Logger

	// Upserts from concurrent domains are serialized so batches do not interleave.
	writeMu sync.Mutex
}

// New constructs an Orchestrator. batchSize <= 0 selects DefaultBatchSize.
func New(
	fetcher DomainFetcher,
	store news.Store,
	prioritizer Prioritizer,
	catalog Catalog,
	batchSize int,
	logger *zap.Logger,
) *Orchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:     fetcher,
		store:       store,
		prioritizer: prioritizer,
		catalog:     catalog,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// ClampConcurrency maps n onto 1..MaxConcurrency, treating n <= 0 as the default.
func ClampConcurrency(n int) int {
	switch {
	case n <= 0:
		return DefaultConcurrency
	case n > MaxConcurrency:
		return MaxConcurrency
	default:
		return n
	}
}

// Run crawls domains (the catalog when empty) with at most concurrency
// fetches in flight, then prioritizes once and removes uncategorized rows.
// Prioritize and cleanup failures are returned alongside the partial result.
func (o *Orchestrator) Run(ctx context.Context, domains []string, concurrency int) (Result, error) {
	if len(domains) == 0 && o.catalog != nil {
		domains = o.catalog.Domains()
	}
	concurrency = ClampConcurrency(concurrency)
	o.logger.Info("crawl started", zap.Int("domains", len(domains)), zap.Int("concurrency", concurrency))

	var (
		res Result
		mu  sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, domain := range domains {
		g.Go(func() error {
			items, err := o.fetcher.Fetch(gctx, domain)
			if err != nil {
				return fmt.Errorf("crawl %s: %w", domain, err)
			}
			n := o.persist(gctx, domain, items)
			mu.Lock()
			res.Upserted += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.ObserveCrawlRun("canceled")
		return res, err
	}
	telemetry.ObserveUpserted(res.Upserted)

	var errs []error
	queued, err := o.prioritizer.Prioritize(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("prioritize: %w", err))
	}
	res.Queued = queued

	removed, err := o.store.DeleteUncategorized(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("remove uncategorized: %w", err))
	}
	res.Removed = removed

	status := "ok"
	if len(errs) > 0 {
		status = "error"
	}
	telemetry.ObserveCrawlRun(status)
	o.logger.Info("crawl completed",
		zap.Int("upserted", res.Upserted),
		zap.Int("queued", res.Queued),
		zap.Int("removed", res.Removed),
	)
	return res, errors.Join(errs...)
}

// persist writes the categorized items of one domain and returns how many were stored.
func (o *Orchestrator) persist(ctx context.Context, domain string, items []news.Item) int {
	kept := make([]news.Item, 0, len(items))
	for _, item := range items {
		if item.Category == "" {
			continue
		}
		kept = append(kept, item)
	}
	logger := o.logger.With(zap.String("source", domain))
	if skipped := len(items) - len(kept); skipped > 0 {
		logger.Debug("skipped uncategorized items", zap.Int("count", skipped))
	}

	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	stored := 0
	for start := 0; start < len(kept); start += o.batchSize {
		end := min(start+o.batchSize, len(kept))
		batch := kept[start:end]
		ids, err := o.store.UpsertBatch(ctx, batch)
		if err == nil {
			stored += len(ids)
			continue
		}
		logger.Warn("batch upsert failed, falling back to single rows", zap.Int("size", len(batch)), zap.Error(err))
		for _, item := range batch {
			if _, err := o.store.Upsert(ctx, item); err != nil {
				logger.Error("upsert failed", zap.String("url", item.URL), zap.Error(err))
				continue
			}
			stored++
		}
	}
	logger.Info("domain persisted", zap.Int("items", len(items)), zap.Int("stored", stored))
	return stored
}
