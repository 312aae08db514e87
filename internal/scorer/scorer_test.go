package scorer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdigest/internal/id/uuid"
	"github.com/JakeFAU/newsdigest/internal/news"
	memqueue "github.com/JakeFAU/newsdigest/internal/queue/memory"
	memstore "github.com/JakeFAU/newsdigest/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var published = time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item news.Item
		want int
	}{
		{
			name: "source keywords and recency",
			item: news.Item{Source: "kompas.com", Title: "Pemerintah umumkan kebijakan ekonomi", PublishDate: &published},
			want: 20 + 10 + 8 + RecencyBonus,
		},
		{
			name: "first source match wins",
			item: news.Item{Source: "www.bbc.com", Title: "Berita dunia"},
			want: 18,
		},
		{
			name: "keywords are case insensitive and summed",
			item: news.Item{Source: "unknown.example", Title: "VAKSIN Corona untuk Pendidikan"},
			want: 10 + 10 + 5,
		},
		{
			name: "nothing matches",
			item: news.Item{Source: "unknown.example", Title: "Berita hari ini"},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Score(tt.item))
		})
	}
}

func seed(t *testing.T, store news.Store, items ...news.Item) map[string]string {
	t.Helper()
	byHash := make(map[string]string, len(items))
	for _, item := range items {
		item.URL = "https://" + item.Source + "/" + item.ContentHash
		item.CrawlDate = published
		id, err := store.Upsert(context.Background(), item)
		require.NoError(t, err)
		byHash[item.ContentHash] = id
	}
	return byHash
}

func TestPrioritizeOrdersQueueByScore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.NewStore(uuid.New())
	queue := memqueue.NewQueue(fixedClock{now: published}, time.Hour)

	ids := seed(t, store,
		news.Item{Source: "kompas.com", Title: "Pemerintah umumkan kebijakan ekonomi", PublishDate: &published, ContentHash: "a"},
		news.Item{Source: "detik.com", Title: "Harga saham turun", ContentHash: "b"},
		news.Item{Source: "republika.co.id", Title: "Vaksin corona tersedia", ContentHash: "c"},
		news.Item{Source: "unknown.example", Title: "Cuaca cerah", ContentHash: "d"},
		news.Item{Source: "tempo.co", Title: "Berita hari ini", PublishDate: &published, ContentHash: "e"},
		news.Item{Source: "kompas.com", Title: "Sudah diringkas", ContentHash: "f"},
	)
	summary := "Ringkasan"
	require.NoError(t, store.Update(ctx, ids["f"], news.Patch{Summary: &summary}))

	p := NewPrioritizer(store, queue, nil)
	n, err := p.Prioritize(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	// Re-running overwrites scores instead of duplicating entries.
	n, err = p.Prioritize(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	depth, err := queue.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, depth)

	entries, err := queue.PopMax(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []news.Entry{
		{ID: ids["a"], Score: 43},
		{ID: ids["c"], Score: 35},
		{ID: ids["b"], Score: 30},
		{ID: ids["e"], Score: 25},
		{ID: ids["d"], Score: 3},
	}, entries)
}

type flakyQueue struct {
	news.Queue
	failID string
	pushed []string
}

func (q *flakyQueue) Push(_ context.Context, id string, _ int) error {
	if id == q.failID {
		return errors.New("queue unavailable")
	}
	q.pushed = append(q.pushed, id)
	return nil
}

func (q *flakyQueue) Len(context.Context) (int, error) {
	return len(q.pushed), nil
}

func TestPrioritizeSkipsFailedPushes(t *testing.T) {
	t.Parallel()

	store := memstore.NewStore(uuid.New())
	ids := seed(t, store,
		news.Item{Source: "kompas.com", Title: "Satu", ContentHash: "a"},
		news.Item{Source: "detik.com", Title: "Dua", ContentHash: "b"},
	)
	queue := &flakyQueue{failID: ids["a"]}

	n, err := NewPrioritizer(store, queue, nil).Prioritize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{ids["b"]}, queue.pushed)
}

// summarizingQueue marks earlier items summarized partway through a run, as
// a worker draining the queue concurrently would.
type summarizingQueue struct {
	news.Queue
	t      *testing.T
	store  news.Store
	after  int
	pushed []string
}

func (q *summarizingQueue) Push(ctx context.Context, id string, score int) error {
	q.pushed = append(q.pushed, id)
	if len(q.pushed) == q.after {
		summary := "Ringkasan"
		for _, done := range q.pushed[:50] {
			require.NoError(q.t, q.store.Update(ctx, done, news.Patch{Summary: &summary}))
		}
	}
	return q.Queue.Push(ctx, id, score)
}

func TestPrioritizeReachesEveryItemWhileRowsAreSummarized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.NewStore(uuid.New())
	items := make([]news.Item, 0, pageSize+200)
	for i := 0; i < pageSize+200; i++ {
		items = append(items, news.Item{
			Source:      "kompas.com",
			Title:       fmt.Sprintf("Berita %d", i),
			ContentHash: fmt.Sprintf("h%d", i),
		})
	}
	seed(t, store, items...)

	queue := &summarizingQueue{
		Queue: memqueue.NewQueue(fixedClock{now: published}, time.Hour),
		t:     t,
		store: store,
		after: pageSize,
	}
	n, err := NewPrioritizer(store, queue, nil).Prioritize(ctx)
	require.NoError(t, err)
	require.Equal(t, pageSize+200, n)

	pushed := make(map[string]bool, len(queue.pushed))
	for _, id := range queue.pushed {
		pushed[id] = true
	}
	pending, err := store.Select(ctx, news.Filter{Unsummarized: true})
	require.NoError(t, err)
	require.Len(t, pending, pageSize+150)
	for _, item := range pending {
		require.True(t, pushed[item.ID], "unsummarized item %s was never queued", item.ID)
	}
}

type failingStore struct{ news.Store }

func (failingStore) Select(context.Context, news.Filter) ([]news.Item, error) {
	return nil, errors.New("database is locked")
}

func TestPrioritizeReturnsSelectError(t *testing.T) {
	t.Parallel()

	_, err := NewPrioritizer(failingStore{}, &flakyQueue{}, nil).Prioritize(context.Background())
	require.ErrorContains(t, err, "select unsummarized")
}
