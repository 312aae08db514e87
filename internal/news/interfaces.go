package news

import (
	"context"
	"time"
)

// Store persists items keyed by id with ContentHash as the upsert key.
type Store interface {
	Upsert(ctx context.Context, item Item) (string, error)
	UpsertBatch(ctx context.Context, items []Item) ([]string, error)
	Get(ctx context.Context, id string) (Item, error)
	Select(ctx context.Context, filter Filter) ([]Item, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	DeleteUncategorized(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, byPublishDate bool) (int, error)
	Ping(ctx context.Context) error
	Close()
}

// Queue is the score-ordered summarization queue together with its failed set.
type Queue interface {
	Push(ctx context.Context, id string, score int) error
	PopMax(ctx context.Context, n int) ([]Entry, error)
	Len(ctx context.Context) (int, error)
	MarkFailed(ctx context.Context, id string, state RetryState) error
	FailedEntries(ctx context.Context) ([]FailedEntry, error)
	RemoveFailed(ctx context.Context, id string) error
	RetryState(ctx context.Context, id string) (RetryState, bool, error)
	ClearRetry(ctx context.Context, id string) error
}

// PageFetcher performs a single HTTP GET.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Extractor pulls readable article text from a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Summarizer calls the external text generation service.
type Summarizer interface {
	Summarize(ctx context.Context, title, content string) (string, error)
}

// Hasher computes item fingerprints.
type Hasher interface {
	Fingerprint(parts ...string) string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces item ids.
type IDGenerator interface {
	NewID() (string, error)
}
