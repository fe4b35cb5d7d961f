package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		accessDecisionsTotal,
		tokensIssuedTotal,
		tokenRedemptionsTotal,
		shortenerRequestsTotal,
	)
}

var (
	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Entitlement evaluations by policy and decision.",
		},
		[]string{"policy", "decision"},
	)

	tokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_tokens_issued_total",
			Help: "Verification tokens minted.",
		},
	)

	tokenRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_token_redemptions_total",
			Help: "Token redemptions by result.",
		},
		[]string{"result"}, // 'accepted', 'rejected'
	)

	shortenerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_requests_total",
			Help: "Shortening service calls by result.",
		},
		[]string{"result"}, // 'ok', 'fallback'
	)
)

func IncAccessDecision(policy, decision string) {
	accessDecisionsTotal.WithLabelValues(norm(policy), norm(decision)).Inc()
}

func IncTokenIssued() {
	tokensIssuedTotal.Inc()
}

func IncTokenRedemption(result string) {
	tokenRedemptionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncShortener(result string) {
	shortenerRequestsTotal.WithLabelValues(norm(result)).Inc()
}
