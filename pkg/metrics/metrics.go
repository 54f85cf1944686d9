// Package metrics documents the Prometheus metrics exposed by statusq.
// Metrics are defined in their owning packages (client, pool, cache) via
// promauto to keep the registration local to the code that drives them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registry statusq metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - statusq_requests_total{status} (Counter): Requests by HTTP status,
//     plus the pseudo statuses "network_error" and "cache_hit"
//   - statusq_request_duration_seconds (Histogram): Per-request duration
//   - statusq_errors_total{class} (Counter): Failures by class
//     (network, protocol, decode)
//
// Pool Metrics (pkg/pool):
//   - statusq_outcomes_total{result} (Counter): Work item outcomes
//     (success, failure)
//   - statusq_batch_duration_seconds (Histogram): Whole-batch wall time
//
// Cache Metrics (pkg/cache):
//   - statusq_cache_hits_total{layer} (Counter): Payload cache hits
//   - statusq_cache_misses_total (Counter): Payload cache misses
//   - statusq_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Failure rate of the current run
//   rate(statusq_outcomes_total{result="failure"}[1m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(statusq_request_duration_seconds_bucket[5m]))
//
//   # Cache hit rate
//   sum(rate(statusq_cache_hits_total[5m])) /
//   (sum(rate(statusq_cache_hits_total[5m])) + sum(rate(statusq_cache_misses_total[5m])))
