package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(identitiesTotal, storeUsedBytes, dbPoolStats) }

var (
	identitiesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "identities_total",
			Help: "Number of identities known to the store.",
		},
	)

	storeUsedBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_used_bytes",
			Help: "Bytes used by the identity store.",
		},
	)

	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)
)

func SetIdentitiesTotal(n int) {
	identitiesTotal.Set(float64(n))
}

func SetStoreUsedBytes(n int64) {
	storeUsedBytes.Set(float64(n))
}

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}
