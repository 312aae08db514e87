package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/newsdigest/internal/telemetry"
)

// Interval enforces a minimum spacing between successive acquisitions across
// every caller sharing it. Waiters are serialized: the lock is held while
// sleeping so the stamp of one caller is visible to the next.
type Interval struct {
	mu       sync.Mutex
	name     string
	interval time.Duration
	last     time.Time
}

// NewInterval builds an Interval limiter. The name labels its wait metric.
func NewInterval(name string, interval time.Duration) *Interval {
	if interval < 0 {
		interval = 0
	}
	return &Interval{name: name, interval: interval}
}

// Wait blocks until at least the configured interval has passed since the
// previous successful Wait, then records the current time.
func (l *Interval) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		if wait := l.interval - time.Since(l.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("rate limit wait: %w", ctx.Err())
			case <-timer.C:
			}
			telemetry.ObserveRateLimitDelay(l.name, wait)
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	l.last = time.Now()
	return nil
}

// Interval reports the configured minimum spacing.
func (l *Interval) Interval() time.Duration {
	return l.interval
}
