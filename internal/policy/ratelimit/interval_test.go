package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntervalFirstCallImmediate(t *testing.T) {
	t.Parallel()

	l := NewInterval("test", time.Second)
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestIntervalSpacingAcrossGoroutines(t *testing.T) {
	t.Parallel()

	const (
		callers = 5
		d       = 40 * time.Millisecond
	)
	l := NewInterval("test", d)

	var (
		mu     sync.Mutex
		stamps []time.Time
		wg     sync.WaitGroup
	)
	start := time.Now()
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background()))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, time.Since(start), (callers-1)*d)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i := 1; i < len(stamps); i++ {
		// Allow scheduler jitter between the stamp and the append.
		require.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), d/2)
	}
}

func TestIntervalCanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	l := NewInterval("test", time.Minute)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIntervalZeroNeverBlocks(t *testing.T) {
	t.Parallel()

	l := NewInterval("test", 0)
	start := time.Now()
	for range 10 {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, time.Duration(0), l.Interval())
}
