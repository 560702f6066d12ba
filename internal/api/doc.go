// Package api hosts the optional status server that runs alongside a crawl.
// Notable routes:
//   - GET /healthz and /readyz for liveness and store reachability.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the persisted crawl cursor.
//   - GET /v1/entities and /v1/entities/{entity_id} for stored row counts.
package api
