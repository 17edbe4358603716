// Package metrics exposes the Prometheus collectors for the API and
// worker. Collectors are registered on the default registry at init so
// wiring code only has to mount promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests by chi route pattern, method
	// and response status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamedata_http_requests_total",
		Help: "HTTP requests served, by route pattern, method and status.",
	}, []string{"pattern", "method", "status"})

	// HTTPDuration tracks request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamedata_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"pattern"})

	// CacheReads counts cache lookups by what the read found: a fresh
	// entry, a stale-but-servable entry, or nothing.
	CacheReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamedata_cache_reads_total",
		Help: "Cache lookups, by freshness of the entry found.",
	}, []string{"result"})

	// UpstreamRequests counts outbound fetches by outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamedata_upstream_requests_total",
		Help: "Upstream fetches, by outcome.",
	}, []string{"outcome"})

	// UpstreamDuration tracks upstream fetch latency.
	UpstreamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gamedata_upstream_request_duration_seconds",
		Help:    "Upstream fetch latency.",
		Buckets: prometheus.DefBuckets,
	})

	// RefreshTasks counts background refresh work by stage.
	RefreshTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamedata_cache_refresh_tasks_total",
		Help: "Background cache refreshes, by stage.",
	}, []string{"stage"})
)
