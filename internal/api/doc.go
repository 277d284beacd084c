// Package api hosts the operator HTTP surface of the crawler:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the crawl cycle state.
package api
