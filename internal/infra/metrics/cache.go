package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

// cache="identity"; result: hit | miss | stale (entry predates the last write) | error
var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_cache_requests_total",
		Help: "Read-through cache lookups in front of the identity store.",
	},
	[]string{"cache", "result"},
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}
