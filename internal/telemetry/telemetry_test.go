package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveSourceFetch(t *testing.T) {
	ObserveSourceFetch("kompas", SourceOK, 3)
	ObserveSourceFetch("kompas", SourceEmpty, 0)

	if val := testutil.ToFloat64(sourcesFetchedTotal.WithLabelValues("kompas", SourceOK)); val != 1 {
		t.Errorf("expected 1 ok fetch, got %f", val)
	}
	if val := testutil.ToFloat64(itemsCrawledTotal.WithLabelValues("kompas")); val != 3 {
		t.Errorf("expected 3 crawled items, got %f", val)
	}
}

func TestObserveSummary(t *testing.T) {
	before := testutil.ToFloat64(summariesTotal.WithLabelValues(OutcomeDropped))
	ObserveSummary(OutcomeDropped)
	if val := testutil.ToFloat64(summariesTotal.WithLabelValues(OutcomeDropped)); val != before+1 {
		t.Errorf("expected dropped counter to increase, got %f", val)
	}
}

func TestMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/news/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/news/abc", nil))

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")); val != 1 {
		t.Errorf("expected one 418 request, got %f", val)
	}
	if n := testutil.CollectAndCount(httpRequestDurationSeconds); n == 0 {
		t.Errorf("expected latency observations")
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://kompas.com", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
