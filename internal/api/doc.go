// Package api hosts the HTTP server, middleware, and REST handlers. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness checks, GET /health for the legacy check.
//   - GET /metrics for Prometheus scraping.
//   - GET /news and /news/{id} for reading stored items.
//   - POST /news/crawl, /news/cleanup, /news/prioritize and /news/summarize to
//     run pipeline stages on demand.
//   - POST /trigger-crawl when the service runs behind an external scheduler.
package api
