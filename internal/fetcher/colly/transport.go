package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/newsdigest/internal/telemetry"
)

var retryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2 * time.Second,
}

// retryTransport retries idempotent requests that fail with a transient
// transport error. A robots.txt request that never succeeds is answered with an
// allow-all document so a flaky host does not block the crawl.
type retryTransport struct {
	base    http.RoundTripper
	backoff []time.Duration
}

func newRetryTransport(base http.RoundTripper, maxRetries int) *retryTransport {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxRetries > len(retryBackoff) {
		maxRetries = len(retryBackoff)
	}
	return &retryTransport{base: base, backoff: retryBackoff[:maxRetries]}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("retry transport received nil request")
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("roundtrip: %w", err)
		}
		return resp, nil
	}

	maxAttempts := len(t.backoff) + 1
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(cloneRequest(req))
		if err == nil {
			return resp, nil
		}
		if !isTransientError(err) || req.Context().Err() != nil {
			return nil, fmt.Errorf("roundtrip: %w", err)
		}
		if attempt == maxAttempts-1 {
			if isRobotsTxtRequest(req) {
				return syntheticRobotsAllowAllResponse(req), nil
			}
			return nil, fmt.Errorf("roundtrip after %d attempts: %w", maxAttempts, err)
		}
		telemetry.ObserveTransientRetry(req.URL.String())
		if err := sleepWithContext(req.Context(), t.backoff[attempt]); err != nil {
			return nil, fmt.Errorf("roundtrip backoff sleep: %w", err)
		}
	}
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	clone.Body = req.Body
	return clone
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func syntheticRobotsAllowAllResponse(req *http.Request) *http.Response {
	const body = "User-agent: *\nAllow: /"
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls: handshake timeout") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "unexpected EOF")
}
