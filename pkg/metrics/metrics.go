// Package metrics provides the Prometheus registry for the price export
// client. Metrics are defined in their respective packages (client,
// goods, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics, plus an exposition handler for the run-time metrics server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - wb_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - wb_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - wb_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, dns)
//
// Rate Window Metrics (pkg/ratelimit):
//   - wb_rate_wait_seconds (Histogram): Time spent waiting for a window slot
//   - wb_rate_window_resets_total (Counter): Window exhaustion resets
//
// Fetch Metrics (pkg/goods):
//   - wb_fetch_batches_total{strategy, outcome} (Counter): Batches by strategy and outcome
//   - wb_fetch_items_total{strategy} (Counter): Price items retrieved by strategy
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(wb_errors_total[5m])
//
//   # Share of batches rejected by the API
//   rate(wb_fetch_batches_total{outcome="rejected"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(wb_request_duration_seconds_bucket[5m]))
//
//   # Time lost to rate limiting
//   rate(wb_rate_wait_seconds_sum[5m])
