package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminCommandTotal, adminLoginTotal) }

var (
	adminCommandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_command_total",
			Help: "Admin-only bot commands and buttons, by caller authorization.",
		},
		[]string{"command", "status"}, // status: authorized | unauthorized
	)
	adminLoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_api_login_total",
			Help: "Admin HTTP API key exchanges.",
		},
		[]string{"result"}, // ok | denied | disabled
	)
)

// IncAdminCommand records an admin route attempt, e.g. ("/broadcast", "unauthorized").
func IncAdminCommand(command, status string) {
	adminCommandTotal.WithLabelValues(norm(command), norm(status)).Inc()
}

func IncAdminLogin(result string) {
	adminLoginTotal.WithLabelValues(norm(result)).Inc()
}
