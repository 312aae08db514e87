// Package main hosts the newsdigest entrypoint.
//
// Architecture overview:
//   - Crawl: internal/crawl fans out over the source catalog with a bounded errgroup. Each domain goes through
//     internal/feed (configured feeds, guessed feed paths, then an HTML link fallback), items are fingerprinted and
//     upserted in batches, then every unsummarized row is scored and pushed onto the priority queue.
//   - Queue: internal/queue/memory or internal/queue/redis hold a score-ordered queue plus a failed set with attempt
//     counts. PopMax is atomic in both, so several workers never receive the same id.
//   - Summarize: internal/worker pops the highest scores, extracts article text, waits on the process-wide interval
//     limiter and calls the configured provider (Groq, OpenAI or Gemini). Unusable items are deleted; transient
//     failures go to the failed set and are requeued with a score penalty until the attempt ceiling.
//   - Storage: internal/storage/{memory,postgres,sqlite} implement news.Store; SQL backends share a squirrel
//     builder and embed golang-migrate schemas.
//   - Plumbing: Viper config (NEWS_ prefix), zap logging, Prometheus metrics on /metrics, chi HTTP API.
//
// Commands:
//   - serve (default): HTTP API plus the configured platform hook (none, interval or trigger).
//   - crawl, prioritize, summarize [--continuous], cleanup: one-shot pipeline stages.
//   - migrate: apply the embedded schema to the configured SQL store.
//
// Quick checklist:
//   - Configure env vars: NEWS_SERVER_PORT, NEWS_STORE_BACKEND and NEWS_STORE_DSN, NEWS_QUEUE_BACKEND and
//     NEWS_QUEUE_REDIS_ADDR, NEWS_SUMMARIZER_SERVICE and NEWS_SUMMARIZER_API_KEY, NEWS_PLATFORM_MODE.
//   - Run locally: go run ./cmd/newsdigest --config config.yaml serve
package main
