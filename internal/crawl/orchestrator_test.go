package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdigest/internal/id/uuid"
	"github.com/JakeFAU/newsdigest/internal/news"
	memqueue "github.com/JakeFAU/newsdigest/internal/queue/memory"
	"github.com/JakeFAU/newsdigest/internal/scorer"
	memstore "github.com/JakeFAU/newsdigest/internal/storage/memory"
)

var crawled = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return crawled }

type fakeFetcher struct {
	byDomain map[string][]news.Item

	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, domain string) ([]news.Item, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, domain)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.byDomain[domain], nil
}

type staticCatalog []string

func (c staticCatalog) Domains() []string { return c }

func article(domain, slug string, category news.Category) news.Item {
	return news.Item{
		Title:       "Berita " + slug,
		URL:         "https://" + domain + "/" + slug,
		Source:      domain,
		Category:    category,
		CrawlDate:   crawled,
		ContentHash: domain + "/" + slug,
	}
}

func newPipeline(fetcher DomainFetcher, store news.Store) (*Orchestrator, *memqueue.Queue) {
	queue := memqueue.NewQueue(fixedClock{}, time.Hour)
	p := scorer.NewPrioritizer(store, queue, nil)
	return New(fetcher, store, p, staticCatalog{"kompas.com"}, 0, nil), queue
}

func TestRunPersistsCategorizedItemsAndIsStable(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{byDomain: map[string][]news.Item{
		"kompas.com": {
			article("kompas.com", "pemilu", news.CategoryPolitics),
			article("kompas.com", "saham", news.CategoryBusiness),
			article("kompas.com", "lainnya", ""),
		},
	}}
	store := memstore.NewStore(uuid.New())
	orch, queue := newPipeline(fetcher, store)
	ctx := context.Background()

	res, err := orch.Run(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, Result{Upserted: 2, Queued: 2}, res)

	res, err = orch.Run(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.Upserted)

	n, err := store.Count(ctx, news.Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	depth, err := queue.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, depth)
	require.Equal(t, []string{"kompas.com", "kompas.com"}, fetcher.calls)
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	domains := make([]string, 8)
	for i := range domains {
		domains[i] = fmt.Sprintf("site%d.com", i)
	}
	fetcher := &fakeFetcher{byDomain: map[string][]news.Item{}, delay: 20 * time.Millisecond}
	orch, _ := newPipeline(fetcher, memstore.NewStore(uuid.New()))

	_, err := orch.Run(context.Background(), domains, 2)
	require.NoError(t, err)
	require.Len(t, fetcher.calls, 8)
	require.LessOrEqual(t, fetcher.peak.Load(), int32(2))
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{byDomain: map[string][]news.Item{}, delay: time.Second}
	orch, _ := newPipeline(fetcher, memstore.NewStore(uuid.New()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := orch.Run(ctx, []string{"kompas.com"}, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// batchFailingStore rejects every batch and one specific row.
type batchFailingStore struct {
	news.Store
	badHash string
	batches int
}

func (s *batchFailingStore) UpsertBatch(context.Context, []news.Item) ([]string, error) {
	s.batches++
	return nil, errors.New("batch rejected")
}

func (s *batchFailingStore) Upsert(ctx context.Context, item news.Item) (string, error) {
	if item.ContentHash == s.badHash {
		return "", errors.New("value too long")
	}
	return s.Store.Upsert(ctx, item)
}

func TestRunFallsBackToSingleRows(t *testing.T) {
	t.Parallel()

	items := make([]news.Item, 0, 60)
	for i := range 60 {
		items = append(items, article("detik.com", fmt.Sprint(i), news.CategoryNational))
	}
	fetcher := &fakeFetcher{byDomain: map[string][]news.Item{"detik.com": items}}
	store := &batchFailingStore{Store: memstore.NewStore(uuid.New()), badHash: "detik.com/7"}
	orch, _ := newPipeline(fetcher, store)

	res, err := orch.Run(context.Background(), []string{"detik.com"}, 1)
	require.NoError(t, err)
	require.Equal(t, 59, res.Upserted)
	require.Equal(t, 2, store.batches)
}

type failingPrioritizer struct{}

func (failingPrioritizer) Prioritize(context.Context) (int, error) {
	return 0, errors.New("queue down")
}

func TestRunReturnsPrioritizeErrorWithResult(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{byDomain: map[string][]news.Item{
		"tempo.co": {article("tempo.co", "a", news.CategoryHealth)},
	}}
	orch := New(fetcher, memstore.NewStore(uuid.New()), failingPrioritizer{}, nil, 10, nil)

	res, err := orch.Run(context.Background(), []string{"tempo.co"}, 1)
	require.ErrorContains(t, err, "prioritize: queue down")
	require.Equal(t, 1, res.Upserted)
}

func TestClampConcurrency(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultConcurrency, ClampConcurrency(0))
	require.Equal(t, DefaultConcurrency, ClampConcurrency(-4))
	require.Equal(t, 1, ClampConcurrency(1))
	require.Equal(t, MaxConcurrency, ClampConcurrency(50))
}
