package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(referralEventsTotal) }

var referralEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "referral_events_total",
		Help: "Referral ledger events.",
	},
	[]string{"event"}, // 'code_created', 'redeemed', 'code_not_found', 'premium_granted', 'premium_denied'
)

func IncReferralEvent(event string) {
	referralEventsTotal.WithLabelValues(norm(event)).Inc()
}
