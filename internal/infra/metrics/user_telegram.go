package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		identitiesRegisteredTotal,
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		linksTransformedTotal,
	)
}

var (
	identitiesRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "identities_registered_total",
			Help: "Total number of identities created on first contact.",
		},
	)

	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming messages and commands from users.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times users have been rate-limited.",
		},
	)

	linksTransformedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "links_transformed_total",
			Help: "Link submissions by outcome.",
		},
		[]string{"result"}, // 'transformed', 'not_a_link', 'gated'
	)
)

func IncIdentitiesRegistered() {
	identitiesRegisteredTotal.Inc()
}

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncLinkSubmission(result string) {
	linksTransformedTotal.WithLabelValues(norm(result)).Inc()
}
