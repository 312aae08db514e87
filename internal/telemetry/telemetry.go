// Package telemetry exposes Prometheus collectors for the news pipeline.
package telemetry

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source fetch statuses.
const (
	SourceOK    = "ok"
	SourceEmpty = "empty"
	SourceError = "error"
)

// Summary outcomes.
const (
	OutcomeSummarized = "summarized"
	OutcomeDeleted    = "deleted"
	OutcomeRetried    = "retried"
	OutcomeDropped    = "dropped"
	OutcomeSkipped    = "skipped"
	OutcomeRequeued   = "requeued"
)

var (
	sourcesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_sources_fetched_total",
			Help: "Total number of source fetches, labeled by source and status.",
		},
		[]string{"source", "status"},
	)

	itemsCrawledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_items_crawled_total",
			Help: "Total number of items produced by crawling, labeled by source.",
		},
		[]string{"source"},
	)

	itemsUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "news_items_upserted_total",
			Help: "Total number of items written to the record store.",
		},
	)

	itemsPrioritizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "news_items_prioritized_total",
			Help: "Total number of items pushed onto the summarization queue.",
		},
	)

	summariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_summaries_total",
			Help: "Total number of processed queue entries, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	summarizerDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "news_summarizer_duration_seconds",
			Help:    "Histogram of summarizer call latencies.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "news_queue_depth",
			Help: "Number of entries in the summarization queue at last observation.",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "news_active_workers",
			Help: "Number of workers currently processing a queue entry.",
		},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "news_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"limiter"},
	)

	transientRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_transient_retries_total",
			Help: "Total outbound requests retried after a transient transport error.",
		},
		[]string{"site"},
	)

	crawlRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "news_crawl_runs_total",
			Help: "Total number of crawl runs, labeled by status.",
		},
		[]string{"status"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// SanitizeSite extracts the hostname from a URL.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveSourceFetch records one source fetch and the number of items it produced.
func ObserveSourceFetch(source, status string, items int) {
	sourcesFetchedTotal.WithLabelValues(source, status).Inc()
	if items > 0 {
		itemsCrawledTotal.WithLabelValues(source).Add(float64(items))
	}
}

// ObserveUpserted records records written to the store.
func ObserveUpserted(n int) {
	if n > 0 {
		itemsUpsertedTotal.Add(float64(n))
	}
}

// ObservePrioritized records entries pushed onto the queue.
func ObservePrioritized(n int) {
	if n > 0 {
		itemsPrioritizedTotal.Add(float64(n))
	}
}

// ObserveSummary records the outcome of processing one queue entry.
func ObserveSummary(outcome string) {
	summariesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSummarizerCall records the latency of one summarizer call.
func ObserveSummarizerCall(duration time.Duration) {
	summarizerDurationSeconds.Observe(duration.Seconds())
}

// ObserveQueueDepth records the current queue length.
func ObserveQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncActiveWorkers increments the active worker count.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active worker count.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(limiter string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(limiter).Observe(duration.Seconds())
}

// ObserveTransientRetry records a retried outbound request.
func ObserveTransientRetry(rawURL string) {
	transientRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveCrawlRun records the completion of a crawl run.
func ObserveCrawlRun(status string) {
	crawlRunsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
