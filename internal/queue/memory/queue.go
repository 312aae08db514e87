// Package memory provides the in-process summarization queue used for local
// development and tests.
package memory

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// DefaultFailedTTL is the lifetime of the failed set after its last write.
const DefaultFailedTTL = time.Hour

// Queue is a score-ordered queue plus failed set guarded by a single mutex.
type Queue struct {
	mu    sync.Mutex
	clock news.Clock
	ttl   time.Duration

	heap  entryHeap
	index map[string]*element

	failed    map[string]int
	attempts  map[string]news.RetryState
	expiresAt time.Time
}

var _ news.Queue = (*Queue)(nil)

// NewQueue constructs an empty queue. The clock drives failed set expiry.
func NewQueue(clock news.Clock, failedTTL time.Duration) *Queue {
	if failedTTL <= 0 {
		failedTTL = DefaultFailedTTL
	}
	return &Queue{
		clock:    clock,
		ttl:      failedTTL,
		index:    make(map[string]*element),
		failed:   make(map[string]int),
		attempts: make(map[string]news.RetryState),
	}
}

// Push inserts id or overwrites its score.
func (q *Queue) Push(ctx context.Context, id string, score int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("push %s: %w", id, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if el, ok := q.index[id]; ok {
		el.score = score
		heap.Fix(&q.heap, el.pos)
		return nil
	}
	el := &element{id: id, score: score}
	heap.Push(&q.heap, el)
	q.index[id] = el
	return nil
}

// PopMax removes and returns up to n entries, highest score first.
func (q *Queue) PopMax(ctx context.Context, n int) ([]news.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pop max: %w", err)
	}
	if n <= 0 {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]news.Entry, 0, min(n, q.heap.Len()))
	for len(out) < n && q.heap.Len() > 0 {
		el := heap.Pop(&q.heap).(*element)
		delete(q.index, el.id)
		out = append(out, news.Entry{ID: el.id, Score: el.score})
	}
	return out, nil
}

// Len reports the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len(), nil
}

// MarkFailed adds id to the failed set, stores its retry state and refreshes the set expiry.
func (q *Queue) MarkFailed(ctx context.Context, id string, state news.RetryState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked()
	q.failed[id] = state.Score
	q.expiresAt = q.clock.Now().Add(q.ttl)
	state.ExpiresAt = q.expiresAt
	q.attempts[id] = state
	return nil
}

// FailedEntries lists the failed set ordered by score, highest first.
func (q *Queue) FailedEntries(ctx context.Context) ([]news.FailedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked()
	out := make([]news.FailedEntry, 0, len(q.failed))
	for id, score := range q.failed {
		state := q.attempts[id]
		state.Score = score
		state.ExpiresAt = q.expiresAt
		out = append(out, news.FailedEntry{ID: id, RetryState: state})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// RemoveFailed drops id from the failed set. Its attempt record is kept.
func (q *Queue) RemoveFailed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remove failed %s: %w", id, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.failed, id)
	return nil
}

// RetryState returns the attempt record for id, if any.
func (q *Queue) RetryState(ctx context.Context, id string) (news.RetryState, bool, error) {
	if err := ctx.Err(); err != nil {
		return news.RetryState{}, false, fmt.Errorf("retry state %s: %w", id, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked()
	state, ok := q.attempts[id]
	return state, ok, nil
}

// ClearRetry forgets every retry trace of id.
func (q *Queue) ClearRetry(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("clear retry %s: %w", id, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.failed, id)
	delete(q.attempts, id)
	return nil
}

// expireLocked empties the failed set and attempt records once the set TTL has passed.
func (q *Queue) expireLocked() {
	if q.expiresAt.IsZero() || q.clock.Now().Before(q.expiresAt) {
		return
	}
	clear(q.failed)
	clear(q.attempts)
	q.expiresAt = time.Time{}
}

type element struct {
	id    string
	score int
	pos   int
}

// entryHeap is a max-heap on score; ties pop the lexicographically greater id first.
type entryHeap []*element

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].id > h[j].id
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *entryHeap) Push(x any) {
	el := x.(*element)
	el.pos = len(*h)
	*h = append(*h, el)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	el := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return el
}
