package feed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/hash/sha256"
	"github.com/JakeFAU/newsdigest/internal/news"
)

var testNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

type staticCatalog map[string][]string

func (c staticCatalog) Feeds(domain string) []string { return c[domain] }

// fakePages serves canned bodies by URL; unknown URLs answer 404.
type fakePages struct {
	mu     sync.Mutex
	bodies map[string]string
	status map[string]int
	errs   map[string]error
	calls  []string
}

func (f *fakePages) Fetch(_ context.Context, url string) (news.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return news.Page{}, err
	}
	if code, ok := f.status[url]; ok {
		return news.Page{URL: url, StatusCode: code}, nil
	}
	body, ok := f.bodies[url]
	if !ok {
		return news.Page{URL: url, StatusCode: http.StatusNotFound}, nil
	}
	return news.Page{URL: url, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func newTestFetcher(pages *fakePages, catalog staticCatalog, cfg Config) *Fetcher {
	return New(pages, catalog, sha256.New(), fixedClock{}, zap.NewNop(), cfg)
}

const kompasFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Kompas</title>
<item>
  <title>Presiden resmikan jalan tol</title>
  <link>https://news.kompas.com/read/1#comments</link>
  <category>Politik</category>
  <pubDate>Mon, 02 Jan 2006 15:04:05 +0700</pubDate>
</item>
<item><title>   </title><link>https://news.kompas.com/read/2</link></item>
<item><title>Tanpa tautan</title></item>
<item><title>Timnas menang di liga</title><link>/read/3</link></item>
</channel></rss>`

func TestFetchParsesFirstWorkingFeed(t *testing.T) {
	t.Parallel()

	pages := &fakePages{
		status: map[string]int{"https://news.kompas.com/rss": http.StatusInternalServerError},
		bodies: map[string]string{
			"https://indeks.kompas.com/rss": "this is not a feed",
			"https://kompas.com/rss":        kompasFeed,
			"https://kompas.com/feed":       kompasFeed,
		},
	}
	catalog := staticCatalog{"kompas.com": {"https://news.kompas.com/rss", "https://indeks.kompas.com/rss"}}

	items, err := newTestFetcher(pages, catalog, Config{}).Fetch(context.Background(), "www.kompas.com")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, []string{
		"https://news.kompas.com/rss",
		"https://indeks.kompas.com/rss",
		"https://kompas.com/rss",
	}, pages.calls, "later feeds are not tried once one yields entries")

	first := items[0]
	require.Equal(t, "Presiden resmikan jalan tol", first.Title)
	require.Equal(t, "https://news.kompas.com/read/1", first.URL)
	require.Equal(t, "kompas.com", first.Source)
	require.Equal(t, news.CategoryPolitics, first.Category)
	require.NotNil(t, first.PublishDate)
	require.Equal(t, time.Date(2006, 1, 2, 8, 4, 5, 0, time.UTC), *first.PublishDate)
	require.Equal(t, testNow, first.CrawlDate)
	require.Nil(t, first.Summary)
	require.Equal(t, sha256.New().Fingerprint(first.URL, first.Title), first.ContentHash)

	second := items[1]
	require.Equal(t, "https://kompas.com/read/3", second.URL)
	require.Equal(t, news.CategorySports, second.Category)
	require.Nil(t, second.PublishDate)
}

func TestFetchSkipsTriedGuesses(t *testing.T) {
	t.Parallel()

	pages := &fakePages{bodies: map[string]string{"https://tempo.co/feed": kompasFeed}}
	catalog := staticCatalog{"tempo.co": {"https://tempo.co/rss"}}

	items, err := newTestFetcher(pages, catalog, Config{}).Fetch(context.Background(), "tempo.co")
	require.NoError(t, err)
	require.NotEmpty(t, items)
	require.Equal(t, []string{"https://tempo.co/rss", "https://tempo.co/feed"}, pages.calls)
	require.Equal(t, "tempo.co", items[0].Source)
}

const frontPage = `<html><body>
<a class="headline" href="https://www.example.com/news/b#top">ignored text</a>
<h2><a href="/news/a">Presiden bertemu menteri</a></h2>
<h2><a href="/news/e"><img src="x.png"></a></h2>
<article><a href="https://other.com/x">Luar</a></article>
<h3><a href="/news/c"></a></h3>
<a href="javascript:void(0)" title="x">js</a>
<a href="/news/d" aria-label="Harga saham naik">  </a>
</body></html>`

func TestFetchFallsBackToFrontPage(t *testing.T) {
	t.Parallel()

	pages := &fakePages{
		bodies: map[string]string{
			"https://example.com": frontPage,
			"https://www.example.com/news/b": `<html><head>
				<meta property="og:title" content="Liga Inggris bergulir">
				<title>ignored</title></head></html>`,
			"https://example.com/news/c": `<html><head><title> Cuaca  cerah </title></head></html>`,
		},
		errs: map[string]error{"https://example.com/news/d": errors.New("reset")},
	}

	items, err := newTestFetcher(pages, staticCatalog{}, Config{}).Fetch(context.Background(), "example.com")
	require.NoError(t, err)

	got := make(map[string]news.Item, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		got[it.URL] = it
		order = append(order, it.URL)
	}
	require.Equal(t, []string{
		"https://www.example.com/news/b",
		"https://example.com/news/a",
		"https://example.com/news/c",
		"https://example.com/news/d",
	}, order)

	require.Equal(t, "Liga Inggris bergulir", got["https://www.example.com/news/b"].Title)
	require.Equal(t, news.CategorySports, got["https://www.example.com/news/b"].Category)
	require.Equal(t, "Presiden bertemu menteri", got["https://example.com/news/a"].Title)
	require.Equal(t, "Cuaca cerah", got["https://example.com/news/c"].Title)
	require.Empty(t, got["https://example.com/news/c"].Category)
	require.Equal(t, "Harga saham naik", got["https://example.com/news/d"].Title)
	require.Equal(t, news.CategoryBusiness, got["https://example.com/news/d"].Category)
	for _, it := range items {
		require.Nil(t, it.PublishDate)
		require.Equal(t, "example.com", it.Source)
	}
}

func TestFetchFrontPageCap(t *testing.T) {
	t.Parallel()

	pages := &fakePages{bodies: map[string]string{"https://example.com": frontPage}}
	items, err := newTestFetcher(pages, staticCatalog{}, Config{MaxHTMLLinks: 2}).
		Fetch(context.Background(), "example.com")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "https://www.example.com/news/b", items[0].URL)
	require.Equal(t, "ignored text", items[0].Title, "anchor text is used when the page has no title")
	require.Equal(t, "https://example.com/news/a", items[1].URL)
}

func TestFetchTotalFailureIsEmpty(t *testing.T) {
	t.Parallel()

	pages := &fakePages{errs: map[string]error{"https://down.test": errors.New("dial")}}
	items, err := newTestFetcher(pages, staticCatalog{}, Config{}).Fetch(context.Background(), "down.test")
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestFetchCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestFetcher(&fakePages{}, staticCatalog{}, Config{}).Fetch(ctx, "kompas.com")
	require.ErrorIs(t, err, context.Canceled)
}
