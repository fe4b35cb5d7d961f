package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(broadcastDeliveriesTotal, broadcastDurationSeconds) }

var (
	broadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Broadcast delivery attempts by outcome.",
		},
		[]string{"outcome"}, // 'sent', 'blocked', 'failed'
	)

	broadcastDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Wall time of a full broadcast pass.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func ObserveBroadcast(sent, blocked, failed int, seconds float64) {
	broadcastDeliveriesTotal.WithLabelValues("sent").Add(float64(sent))
	broadcastDeliveriesTotal.WithLabelValues("blocked").Add(float64(blocked))
	broadcastDeliveriesTotal.WithLabelValues("failed").Add(float64(failed))
	broadcastDurationSeconds.Observe(seconds)
}
