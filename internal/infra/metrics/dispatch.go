package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dispatchClaimsTotal, dispatchSkipsTotal, processingGauge) }

var dispatchClaimsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dispatch_claims_total",
		Help: "Claim attempts by the dispatcher, labeled by result.",
	},
	[]string{"result"}, // 'won', 'lost'
)

var dispatchSkipsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dispatch_skips_total",
		Help: "Dispatch passes that selected nothing, labeled by reason.",
	},
	[]string{"reason"}, // 'global_cap', 'tier_cap', 'empty'
)

var processingGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "jobs_processing",
		Help: "Jobs currently in processing.",
	},
)

func IncDispatchClaim(result string) {
	dispatchClaimsTotal.WithLabelValues(norm(result)).Inc()
}

func IncDispatchSkip(reason string) {
	dispatchSkipsTotal.WithLabelValues(norm(reason)).Inc()
}

func SetProcessing(n int) {
	processingGauge.Set(float64(n))
}
