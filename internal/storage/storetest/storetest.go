// Package storetest holds behavior tests shared by every news.Store implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) news.Store

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// Item builds a valid item whose hash derives from n.
func Item(n int, category news.Category) news.Item {
	return news.Item{
		Title:       fmt.Sprintf("Berita %d", n),
		URL:         fmt.Sprintf("https://kompas.com/read/%d", n),
		Source:      "kompas.com",
		Category:    category,
		CrawlDate:   base,
		ContentHash: fmt.Sprintf("hash-%d", n),
	}
}

func at(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

// Run exercises the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("UpsertIsIdempotentOnContentHash", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := Item(1, news.CategoryPolitics)
		id, err := s.Upsert(ctx, first)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		again := first
		again.CrawlDate = base.Add(time.Hour)
		id2, err := s.Upsert(ctx, again)
		require.NoError(t, err)
		require.Equal(t, id, id2)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, base.Add(time.Hour), got.CrawlDate.UTC())
		require.Equal(t, news.CategoryPolitics, got.Category)
		require.Nil(t, got.Summary)

		n, err := s.Count(ctx, news.Filter{})
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("UpsertBatchReturnsIDsInOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		existing, err := s.Upsert(ctx, Item(2, news.CategorySports))
		require.NoError(t, err)

		ids, err := s.UpsertBatch(ctx, []news.Item{
			Item(1, news.CategoryPolitics),
			Item(2, news.CategorySports),
			Item(3, news.CategoryHealth),
		})
		require.NoError(t, err)
		require.Len(t, ids, 3)
		require.Equal(t, existing, ids[1])
		require.NotEqual(t, ids[0], ids[2])

		n, err := s.Count(ctx, news.Filter{})
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("UpsertBatchRejectsInvalidItems", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		bad := Item(2, news.CategorySports)
		bad.ContentHash = ""
		_, err := s.UpsertBatch(ctx, []news.Item{Item(1, news.CategoryPolitics), bad})
		require.Error(t, err)

		n, err := s.Count(ctx, news.Filter{})
		require.NoError(t, err)
		require.Zero(t, n, "a rejected batch writes nothing")
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "01890a5d-ac96-774b-bcce-b302099a8057")
		require.ErrorIs(t, err, news.ErrNotFound)
	})

	t.Run("SelectFiltersAndOrders", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		old := Item(1, news.CategoryBusiness)
		old.Title = "Harga saham turun"
		old.PublishDate = at(-48 * time.Hour)

		recent := Item(2, news.CategoryBusiness)
		recent.Title = "IHSG menguat"
		recent.PublishDate = at(-time.Hour)

		undated := Item(3, news.CategoryBusiness)
		undated.Title = "Rupiah stabil"
		undated.CrawlDate = base.Add(time.Minute)

		other := Item(4, news.CategorySports)
		other.Source = "detik.com"
		other.PublishDate = at(-2 * time.Hour)

		ids := make(map[int]string)
		for n, it := range map[int]news.Item{1: old, 2: recent, 3: undated, 4: other} {
			id, err := s.Upsert(ctx, it)
			require.NoError(t, err)
			ids[n] = id
		}
		summary := "Pasar SAHAM bergairah"
		require.NoError(t, s.Update(ctx, ids[2], news.Patch{Summary: &summary}))

		all, err := s.Select(ctx, news.Filter{})
		require.NoError(t, err)
		require.Equal(t, []string{ids[2], ids[4], ids[1], ids[3]}, itemIDs(all))

		business, err := s.Select(ctx, news.Filter{Category: news.CategoryBusiness})
		require.NoError(t, err)
		require.Equal(t, []string{ids[2], ids[1], ids[3]}, itemIDs(business))

		bySource, err := s.Select(ctx, news.Filter{Source: "www.detik.com"})
		require.NoError(t, err)
		require.Equal(t, []string{ids[4]}, itemIDs(bySource))

		query, err := s.Select(ctx, news.Filter{Query: "saham"})
		require.NoError(t, err)
		require.Equal(t, []string{ids[2], ids[1]}, itemIDs(query), "matches title or summary, any case")

		ranged, err := s.Select(ctx, news.Filter{From: at(-3 * time.Hour), To: at(0)})
		require.NoError(t, err)
		require.Equal(t, []string{ids[2], ids[4]}, itemIDs(ranged))

		pending, err := s.Select(ctx, news.Filter{Unsummarized: true})
		require.NoError(t, err)
		require.Equal(t, []string{ids[4], ids[1], ids[3]}, itemIDs(pending))

		page, err := s.Select(ctx, news.Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Equal(t, []string{ids[4], ids[1]}, itemIDs(page))

		count, err := s.Count(ctx, news.Filter{Category: news.CategoryBusiness, Limit: 1})
		require.NoError(t, err)
		require.Equal(t, 3, count)
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Upsert(ctx, Item(1, news.CategoryPolitics))
		require.NoError(t, err)

		summary := "Ringkasan singkat."
		category := news.CategoryNational
		require.NoError(t, s.Update(ctx, id, news.Patch{Summary: &summary, Category: &category}))

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.Summary)
		require.Equal(t, summary, *got.Summary)
		require.Equal(t, news.CategoryNational, got.Category)
		require.Equal(t, "Berita 1", got.Title)

		require.ErrorIs(t, s.Update(ctx, "01890a5d-ac96-774b-bcce-b302099a8057", news.Patch{Summary: &summary}),
			news.ErrNotFound)

		require.NoError(t, s.Delete(ctx, id))
		_, err = s.Get(ctx, id)
		require.ErrorIs(t, err, news.ErrNotFound)
		require.NoError(t, s.Delete(ctx, id), "deleting twice is not an error")

		// The hash is free again after deletion.
		id2, err := s.Upsert(ctx, Item(1, news.CategoryPolitics))
		require.NoError(t, err)
		require.NotEqual(t, id, id2)
	})

	t.Run("DeleteUncategorized", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertBatch(ctx, []news.Item{
			Item(1, news.CategoryPolitics),
			Item(2, ""),
			Item(3, news.CategoryHealth),
		})
		require.NoError(t, err)

		n, err := s.DeleteUncategorized(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		left, err := s.Count(ctx, news.Filter{})
		require.NoError(t, err)
		require.Equal(t, 2, left)
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		stale := Item(1, news.CategoryPolitics)
		stale.CrawlDate = base.Add(-40 * 24 * time.Hour)
		stale.PublishDate = at(-40 * 24 * time.Hour)

		freshCrawlOldPublish := Item(2, news.CategoryPolitics)
		freshCrawlOldPublish.PublishDate = at(-35 * 24 * time.Hour)

		undated := Item(3, news.CategoryPolitics)

		_, err := s.UpsertBatch(ctx, []news.Item{stale, freshCrawlOldPublish, undated})
		require.NoError(t, err)

		cutoff := base.Add(-30 * 24 * time.Hour)
		n, err := s.DeleteOlderThan(ctx, cutoff, false)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		n, err = s.DeleteOlderThan(ctx, cutoff, true)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		left, err := s.Select(ctx, news.Filter{})
		require.NoError(t, err)
		require.Len(t, left, 1)
		require.Equal(t, "hash-3", left[0].ContentHash)
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}

func itemIDs(items []news.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
