package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A constant metric with labels for version, commit and access policy.",
	},
	[]string{"version", "commit", "policy"},
)

func SetBuildInfo(version, commit, policy string) {
	buildInfo.WithLabelValues(version, commit, norm(policy)).Set(1)
}
