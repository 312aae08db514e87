// Package redis stores the summarization queue and its failed set in Redis
// sorted sets so several worker processes can share one queue.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// Key names, joined to the configured prefix.
const (
	QueueKey    = "news_summarization_queue"
	FailedKey   = "failed_summarization_queue"
	AttemptsKey = "failed_summarization_queue:attempts"
)

// DefaultFailedTTL is the lifetime of the failed set after its last write.
const DefaultFailedTTL = time.Hour

// Options configures key naming and expiry.
type Options struct {
	KeyPrefix string
	FailedTTL time.Duration
}

// Queue implements news.Queue on a Redis client.
type Queue struct {
	client      goredis.UniversalClient
	clock       news.Clock
	ttl         time.Duration
	queueKey    string
	failedKey   string
	attemptsKey string
}

var _ news.Queue = (*Queue)(nil)

// ClientConfig names a Redis server either by URL or by address.
type ClientConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
}

// NewClient dials Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg ClientConfig) (*goredis.Client, error) {
	var opts *goredis.Options
	if cfg.URL != "" {
		parsed, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, clock news.Clock, opts Options) *Queue {
	ttl := opts.FailedTTL
	if ttl <= 0 {
		ttl = DefaultFailedTTL
	}
	return &Queue{
		client:      client,
		clock:       clock,
		ttl:         ttl,
		queueKey:    opts.KeyPrefix + QueueKey,
		failedKey:   opts.KeyPrefix + FailedKey,
		attemptsKey: opts.KeyPrefix + AttemptsKey,
	}
}

// Push inserts id or overwrites its score.
func (q *Queue) Push(ctx context.Context, id string, score int) error {
	if err := q.client.ZAdd(ctx, q.queueKey, goredis.Z{Score: float64(score), Member: id}).Err(); err != nil {
		return fmt.Errorf("push %s: %w", id, err)
	}
	return nil
}

// PopMax atomically removes up to n entries, highest score first.
func (q *Queue) PopMax(ctx context.Context, n int) ([]news.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := q.client.ZPopMax(ctx, q.queueKey, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("pop max: %w", err)
	}
	return toEntries(zs), nil
}

// Len reports the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}
	return int(n), nil
}

// MarkFailed adds id to the failed set, stores its retry state and refreshes the TTL of both keys.
func (q *Queue) MarkFailed(ctx context.Context, id string, state news.RetryState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode retry state: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, q.failedKey, goredis.Z{Score: float64(state.Score), Member: id})
		pipe.HSet(ctx, q.attemptsKey, id, payload)
		pipe.Expire(ctx, q.failedKey, q.ttl)
		pipe.Expire(ctx, q.attemptsKey, q.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	return nil
}

// FailedEntries lists the failed set ordered by score, highest first.
func (q *Queue) FailedEntries(ctx context.Context) ([]news.FailedEntry, error) {
	zs, err := q.client.ZRevRangeWithScores(ctx, q.failedKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}
	if len(zs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(zs))
	for i, z := range zs {
		ids[i] = memberString(z.Member)
	}
	raw, err := q.client.HMGet(ctx, q.attemptsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	expires, err := q.expiry(ctx, q.failedKey)
	if err != nil {
		return nil, err
	}

	out := make([]news.FailedEntry, 0, len(zs))
	for i, z := range zs {
		var state news.RetryState
		if s, ok := raw[i].(string); ok {
			if err := json.Unmarshal([]byte(s), &state); err != nil {
				return nil, fmt.Errorf("decode retry state %s: %w", ids[i], err)
			}
		}
		state.Score = int(z.Score)
		state.ExpiresAt = expires
		out = append(out, news.FailedEntry{ID: ids[i], RetryState: state})
	}
	return out, nil
}

// RemoveFailed drops id from the failed set. Its attempt record is kept.
func (q *Queue) RemoveFailed(ctx context.Context, id string) error {
	if err := q.client.ZRem(ctx, q.failedKey, id).Err(); err != nil {
		return fmt.Errorf("remove failed %s: %w", id, err)
	}
	return nil
}

// RetryState returns the attempt record for id, if any.
func (q *Queue) RetryState(ctx context.Context, id string) (news.RetryState, bool, error) {
	raw, err := q.client.HGet(ctx, q.attemptsKey, id).Result()
	if errors.Is(err, goredis.Nil) {
		return news.RetryState{}, false, nil
	}
	if err != nil {
		return news.RetryState{}, false, fmt.Errorf("retry state %s: %w", id, err)
	}
	var state news.RetryState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return news.RetryState{}, false, fmt.Errorf("decode retry state %s: %w", id, err)
	}
	expires, err := q.expiry(ctx, q.attemptsKey)
	if err != nil {
		return news.RetryState{}, false, err
	}
	state.ExpiresAt = expires
	return state, true, nil
}

// ClearRetry forgets every retry trace of id.
func (q *Queue) ClearRetry(ctx context.Context, id string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRem(ctx, q.failedKey, id)
		pipe.HDel(ctx, q.attemptsKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear retry %s: %w", id, err)
	}
	return nil
}

// expiry converts a key's remaining TTL to an absolute time. Keys without a TTL return zero.
func (q *Queue) expiry(ctx context.Context, key string) (time.Time, error) {
	ttl, err := q.client.PTTL(ctx, key).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("ttl %s: %w", key, err)
	}
	if ttl <= 0 {
		return time.Time{}, nil
	}
	return q.clock.Now().Add(ttl), nil
}

func toEntries(zs []goredis.Z) []news.Entry {
	out := make([]news.Entry, 0, len(zs))
	for _, z := range zs {
		out = append(out, news.Entry{ID: memberString(z.Member), Score: int(z.Score)})
	}
	return out
}

func memberString(m any) string {
	if s, ok := m.(string); ok {
		return s
	}
	return fmt.Sprint(m)
}
