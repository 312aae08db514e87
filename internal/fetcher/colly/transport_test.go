package collyfetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryTransportAllowAllRobotsOnTimeout(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{
		{err: context.DeadlineExceeded},
		{err: context.DeadlineExceeded},
		{err: context.DeadlineExceeded},
	}}
	transport := &retryTransport{base: base, backoff: make([]time.Duration, 2)}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/robots.txt", nil)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, resp.Body.Close()) })

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "User-agent: *\nAllow: /", string(body))
	require.Equal(t, 3, base.calls)
}

func TestRetryTransportGivesUpOnPages(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{{err: context.DeadlineExceeded}}}
	transport := &retryTransport{base: base, backoff: make([]time.Duration, 1)}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/news", nil)
	_, err := transport.RoundTrip(req) //nolint:bodyclose // error path
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 2, base.calls)
}

func TestRetryTransportStopsAfterSuccess(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{
		{err: context.DeadlineExceeded},
		{resp: httptest.NewRecorder().Result()},
	}}
	transport := &retryTransport{base: base, backoff: make([]time.Duration, 3)}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/rss", nil)
	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, 2, base.calls)
}

func TestRetryTransportDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{results: []roundTripResult{{err: errors.New("no such host")}}}
	transport := newRetryTransport(base, 3)

	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	_, err := transport.RoundTrip(req) //nolint:bodyclose // error path
	require.Error(t, err)
	require.Equal(t, 1, base.calls)
}

func TestNewRetryTransportClampsRetries(t *testing.T) {
	t.Parallel()

	require.Len(t, newRetryTransport(http.DefaultTransport, 99).backoff, len(retryBackoff))
	require.Empty(t, newRetryTransport(http.DefaultTransport, -1).backoff)
}

type roundTripResult struct {
	resp *http.Response
	err  error
}

type stubRoundTripper struct {
	results []roundTripResult
	calls   int
}

func (s *stubRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	defer func() { s.calls++ }()
	if len(s.results) == 0 {
		return nil, context.DeadlineExceeded
	}
	idx := s.calls
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	res := s.results[idx]
	return res.resp, res.err
}
