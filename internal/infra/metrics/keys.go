package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(keyAcquisitionsTotal, keyUsageGauge) }

var keyAcquisitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "resource_key_acquisitions_total",
		Help: "Resource key pool acquisitions, labeled by service and result.",
	},
	[]string{"service", "result"}, // 'ok', 'exhausted'
)

var keyUsageGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "resource_key_usage_today",
		Help: "Usage count of a key inside the current UTC day.",
	},
	[]string{"service", "key"},
)

func IncKeyAcquisition(service, result string) {
	keyAcquisitionsTotal.WithLabelValues(norm(service), norm(result)).Inc()
}

func SetKeyUsage(service, key string, usage int) {
	keyUsageGauge.WithLabelValues(norm(service), key).Set(float64(usage))
}
