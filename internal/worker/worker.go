// Package worker consumes the summarization queue: it extracts article text,
// calls the summarizer under a shared rate limit and applies the retry policy.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/news"
	"github.com/JakeFAU/newsdigest/internal/telemetry"
)

// Concurrency bounds for RunOnce.
const (
	DefaultConcurrency = 1
	MaxConcurrency     = 5
)

// requeueTimeout bounds the push-back of an in-flight item after cancellation.
const requeueTimeout = 5 * time.Second

// Limiter gates calls to the summarizer.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config controls Pool behavior.
type Config struct {
	Concurrency       int
	MaxAttempts       int
	RetryPenalty      int
	HousekeepingEvery int
	IdleSleep         time.Duration
}

func (c Config) withDefaults() Config {
	c.Concurrency = ClampConcurrency(c.Concurrency)
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryPenalty < 0 {
		c.RetryPenalty = 0
	}
	if c.HousekeepingEvery <= 0 {
		c.HousekeepingEvery = 10
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = 5 * time.Second
	}
	return c
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

// Pool processes queue entries.
type Pool struct {
	store      news.Store
	queue      news.Queue
	extractor  news.Extractor
	summarizer news.Summarizer
	limiter    Limiter
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pool.
func New(
	store news.Store,
	queue news.Queue,
	extractor news.Extractor,
	summarizer news.Summarizer,
	limiter Limiter,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		store:      store,
		queue:      queue,
		extractor:  extractor,
		summarizer: summarizer,
		limiter:    limiter,
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// RunOnce pops up to concurrency entries, processes them concurrently and
// returns how many were popped. Summarization failures are handled by the
// retry policy; the returned error joins the entries whose retry bookkeeping
// failed and may have left the queue.
func (p *Pool) RunOnce(ctx context.Context, concurrency int) (int, error) {
	entries, err := p.queue.PopMax(ctx, ClampConcurrency(concurrency))
	if err != nil {
		return 0, fmt.Errorf("pop queue: %w", err)
	}
	errs := make([]error, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Go(func() {
			errs[i] = p.process(ctx, entry)
		})
	}
	wg.Wait()

	if n, err := p.queue.Len(ctx); err == nil {
		telemetry.ObserveQueueDepth(n)
	}
	return len(entries), errors.Join(errs...)
}

// RetryFailed moves failed entries back onto the queue with a score penalty.
// Entries that have used every attempt are dropped instead.
func (p *Pool) RetryFailed(ctx context.Context) (requeued, dropped int, err error) {
	entries, err := p.queue.FailedEntries(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list failed: %w", err)
	}
	var errs []error
	for _, e := range entries {
		logger := p.logger.With(zap.String("item_id", e.ID), zap.Int("attempts", e.Attempts))
		if e.Attempts >= p.cfg.MaxAttempts {
			if err := p.queue.ClearRetry(ctx, e.ID); err != nil {
				errs = append(errs, fmt.Errorf("drop %s: %w", e.ID, err))
				continue
			}
			logger.Warn("retry attempts exhausted, dropping item")
			telemetry.ObserveSummary(telemetry.OutcomeDropped)
			dropped++
			continue
		}
		if err := p.queue.Push(ctx, e.ID, e.Score-p.cfg.RetryPenalty); err != nil {
			errs = append(errs, fmt.Errorf("requeue %s: %w", e.ID, err))
			continue
		}
		if err := p.queue.RemoveFailed(ctx, e.ID); err != nil {
			errs = append(errs, fmt.Errorf("remove failed %s: %w", e.ID, err))
			continue
		}
		logger.Debug("requeued failed item", zap.Int("score", e.Score-p.cfg.RetryPenalty))
		requeued++
	}
	if requeued > 0 || dropped > 0 {
		p.logger.Info("retry housekeeping completed", zap.Int("requeued", requeued), zap.Int("dropped", dropped))
	}
	return requeued, dropped, errors.Join(errs...)
}

// Run processes the queue until ctx ends, running retry housekeeping every
// HousekeepingEvery iterations and sleeping while the queue is empty.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("summarizer loop started",
		zap.Int("concurrency", p.cfg.Concurrency),
		zap.Int("max_attempts", p.cfg.MaxAttempts),
	)
	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			p.logger.Info("summarizer loop stopped")
			return nil
		}
		if iteration%p.cfg.HousekeepingEvery == 0 {
			if _, _, err := p.RetryFailed(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("retry housekeeping failed", zap.Error(err))
			}
		}
		n, err := p.RunOnce(ctx, p.cfg.Concurrency)
		if err != nil && ctx.Err() == nil {
			p.logger.Error("summarizer iteration failed", zap.Error(err))
		}
		if n == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.IdleSleep):
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, entry news.Entry) error {
	telemetry.IncActiveWorkers()
	defer telemetry.DecActiveWorkers()

	logger := p.logger.With(zap.String("item_id", entry.ID), zap.Int("score", entry.Score))
	attempt := 1
	state, ok, err := p.queue.RetryState(ctx, entry.ID)
	switch {
	case err != nil:
		logger.Warn("retry state lookup failed, assuming first attempt", zap.Error(err))
	case ok:
		attempt = state.Attempts + 1
	}
	logger = logger.With(zap.Int("attempt", attempt))

	outcome := telemetry.OutcomeSummarized
	var bookkeepingErr error
	if err := p.summarize(ctx, logger, entry.ID); err != nil {
		outcome, bookkeepingErr = p.handleFailure(ctx, logger, entry, attempt, err)
	} else {
		logger.Info("item summarized")
	}
	telemetry.ObserveSummary(outcome)
	return bookkeepingErr
}

// errSkip marks an item that vanished or was already summarized.
var errSkip = errors.New("item skipped")

func (p *Pool) summarize(ctx context.Context, logger *zap.Logger, id string) error {
	item, err := p.store.Get(ctx, id)
	if errors.Is(err, news.ErrNotFound) {
		return errSkip
	}
	if err != nil {
		return fmt.Errorf("load item: %w", err)
	}
	if item.Summarized() {
		return errSkip
	}

	content, err := p.extractor.Extract(ctx, item.URL)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	summary, err := p.summarizer.Summarize(ctx, item.Title, content)
	telemetry.ObserveSummarizerCall(time.Since(start))
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	err = p.store.Update(ctx, id, news.Patch{Summary: &summary})
	if errors.Is(err, news.ErrNotFound) {
		return errSkip
	}
	if err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	if err := p.queue.ClearRetry(ctx, id); err != nil {
		logger.Warn("clear retry state failed", zap.Error(err))
	}
	return nil
}

// handleFailure applies the retry policy and returns the outcome label. The
// error is set when the policy could not be recorded.
func (p *Pool) handleFailure(
	ctx context.Context,
	logger *zap.Logger,
	entry news.Entry,
	attempt int,
	cause error,
) (string, error) {
	switch {
	case errors.Is(cause, errSkip):
		if err := p.queue.ClearRetry(ctx, entry.ID); err != nil {
			logger.Warn("clear retry state failed", zap.Error(err))
		}
		logger.Debug("item skipped")
		return telemetry.OutcomeSkipped, nil

	case ctx.Err() != nil:
		// Shutdown: hand the item back untouched so no attempt is consumed.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
		defer cancel()
		if err := p.queue.Push(rctx, entry.ID, entry.Score); err != nil {
			// Run does not log iteration errors once ctx is done.
			logger.Error("requeue after cancellation failed", zap.Error(err))
			return telemetry.OutcomeRequeued, fmt.Errorf("requeue %s: %w", entry.ID, err)
		}
		return telemetry.OutcomeRequeued, nil

	case news.Unusable(cause):
		if err := p.queue.ClearRetry(ctx, entry.ID); err != nil {
			logger.Warn("clear retry state failed", zap.Error(err))
		}
		if err := p.store.Delete(ctx, entry.ID); err != nil {
			return telemetry.OutcomeDeleted, fmt.Errorf("delete unusable %s: %w", entry.ID, err)
		}
		logger.Info("deleted unsummarizable item", zap.Error(cause))
		return telemetry.OutcomeDeleted, nil

	case attempt < p.cfg.MaxAttempts:
		state := news.RetryState{Score: entry.Score, Attempts: attempt}
		if err := p.queue.MarkFailed(ctx, entry.ID, state); err != nil {
			return telemetry.OutcomeRetried, fmt.Errorf("record failure of %s: %w", entry.ID, err)
		}
		logger.Warn("summarization failed, will retry", zap.Error(cause))
		return telemetry.OutcomeRetried, nil

	default:
		if err := p.queue.ClearRetry(ctx, entry.ID); err != nil {
			logger.Warn("clear retry state failed", zap.Error(err))
		}
		logger.Error("summarization failed, attempts exhausted", zap.Error(cause))
		return telemetry.OutcomeDropped, nil
	}
}
