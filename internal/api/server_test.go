package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/crawl"
	"github.com/JakeFAU/newsdigest/internal/id/uuid"
	"github.com/JakeFAU/newsdigest/internal/news"
	memstore "github.com/JakeFAU/newsdigest/internal/storage/memory"
)

var now = time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

type fakeClock struct{}

func (fakeClock) Now() time.Time { return now }

type fakeCrawler struct {
	domains     []string
	concurrency int
	res         crawl.Result
	err         error
}

func (f *fakeCrawler) Run(_ context.Context, domains []string, concurrency int) (crawl.Result, error) {
	f.domains = domains
	f.concurrency = concurrency
	return f.res, f.err
}

type fakePrioritizer struct {
	queued int
	err    error
}

func (f *fakePrioritizer) Prioritize(context.Context) (int, error) { return f.queued, f.err }

type fakeSummarizer struct {
	concurrency int
	retried     bool
	processed   int
}

func (f *fakeSummarizer) RunOnce(_ context.Context, concurrency int) (int, error) {
	f.concurrency = concurrency
	return f.processed, nil
}

func (f *fakeSummarizer) RetryFailed(context.Context) (int, int, error) {
	f.retried = true
	return 0, 0, nil
}

type downStore struct{ news.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type harness struct {
	store   *memstore.Store
	crawler *fakeCrawler
	prio    *fakePrioritizer
	summ    *fakeSummarizer
	server  *Server
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		store:   memstore.NewStore(uuid.New()),
		crawler: &fakeCrawler{res: crawl.Result{Upserted: 7}},
		prio:    &fakePrioritizer{queued: 4},
		summ:    &fakeSummarizer{processed: 2},
	}
	h.server = NewServer(h.store, h.crawler, h.prio, h.summ, fakeClock{}, opts, zap.NewNop())
	return h
}

func (h *harness) do(t *testing.T, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func (h *harness) seed(t *testing.T, slug string, category news.Category, published time.Time) string {
	t.Helper()
	id, err := h.store.Upsert(context.Background(), news.Item{
		Title:       "Berita " + slug,
		URL:         "https://kompas.com/" + slug,
		Source:      "kompas.com",
		Category:    category,
		PublishDate: &published,
		CrawlDate:   now,
		ContentHash: slug,
	})
	require.NoError(t, err)
	return id
}

func TestRootAndHealth(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{Version: "1.2.3"})

	rec, body := h.do(t, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "newsdigest", body["service"])
	require.Equal(t, "1.2.3", body["version"])
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	_, body = h.do(t, http.MethodGet, "/health")
	require.Equal(t, "2024-05-31T12:00:00Z", body["time"])

	rec, _ = h.do(t, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsStoreOutage(t *testing.T) {
	t.Parallel()

	s := NewServer(downStore{}, &fakeCrawler{}, &fakePrioritizer{}, &fakeSummarizer{}, fakeClock{}, Options{}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListNewsFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{})
	h.seed(t, "a", news.CategoryPolitics, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	h.seed(t, "b", news.CategoryPolitics, time.Date(2024, 5, 2, 23, 0, 0, 0, time.UTC))
	h.seed(t, "c", news.CategorySports, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC))

	rec, body := h.do(t, http.MethodGet, "/news?category=politics&to_date=2024-05-02&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, body["total"])
	require.EqualValues(t, 1, body["limit"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "Berita b", items[0].(map[string]any)["title"])

	_, body = h.do(t, http.MethodGet, "/news?category=politics&offset=1")
	require.EqualValues(t, 2, body["total"])
	require.Len(t, body["items"].([]any), 1)

	_, body = h.do(t, http.MethodGet, "/news?from_date=2024-05-02")
	require.EqualValues(t, 2, body["total"])
}

func TestListNewsRejectsBadParameters(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{})
	for _, target := range []string{
		"/news?limit=0",
		"/news?limit=51",
		"/news?offset=-1",
		"/news?category=weather",
		"/news?from_date=yesterday",
	} {
		rec, body := h.do(t, http.MethodGet, target)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		require.Equal(t, "error", body["status"], target)
	}
}

func TestGetNews(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{})
	id := h.seed(t, "a", news.CategoryHealth, now)

	rec, body := h.do(t, http.MethodGet, "/news/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, id, body["id"])
	require.Equal(t, "health", body["category"])

	rec, _ = h.do(t, http.MethodGet, "/news/does-not-exist")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCrawlEndpoint(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{})
	rec, body := h.do(t, http.MethodPost, "/news/crawl?concurrency=5&domains=kompas.com,%20detik.com")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 7, body["upserted"])
	require.Equal(t, []string{"kompas.com", "detik.com"}, h.crawler.domains)
	require.Equal(t, 5, h.crawler.concurrency)

	rec, _ = h.do(t, http.MethodPost, "/news/crawl?concurrency=11")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanupEndpoint(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{})
	h.seed(t, "old", news.CategoryEconomy, now.AddDate(0, 0, -40))
	h.seed(t, "new", news.CategoryEconomy, now.AddDate(0, 0, -1))

	rec, body := h.do(t, http.MethodPost, "/news/cleanup?days=30&by_publish=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["deleted"])

	rec, _ = h.do(t, http.MethodPost, "/news/cleanup?days=400")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrioritizeAndSummarizeEndpoints(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{})
	_, body := h.do(t, http.MethodPost, "/news/prioritize")
	require.EqualValues(t, 4, body["queued"])

	rec, body := h.do(t, http.MethodPost, "/news/summarize?concurrency=3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, body["processed"])
	require.Equal(t, 3, h.summ.concurrency)
	require.True(t, h.summ.retried)

	rec, _ = h.do(t, http.MethodPost, "/news/summarize?concurrency=6")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerCrawlIsOptIn(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{})
	rec, _ := h.do(t, http.MethodPost, "/trigger-crawl")
	require.Equal(t, http.StatusNotFound, rec.Code)

	h = newHarness(t, Options{TriggerCrawl: true})
	rec, body := h.do(t, http.MethodPost, "/trigger-crawl")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 7, body["upserted"])
	require.Nil(t, h.crawler.domains)
}

func TestAPIKeyGuardsNewsRoutes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Options{AuthEnabled: true, APIKey: "secret"})

	rec, _ := h.do(t, http.MethodGet, "/news")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/news?api_key=secret")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
