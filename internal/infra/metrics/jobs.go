package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsSubmittedTotal, jobsFinishedTotal, jobsRequeuedTotal, jobsReapedTotal, generationLatencyMs)
}

var jobsSubmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_submitted_total",
		Help: "Jobs received at admission, labeled by kind and outcome.",
	},
	[]string{"kind", "outcome"}, // outcome: 'queued', 'invalid_request', 'queue_limit', 'insufficient_tokens'
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_finished_total",
		Help: "Jobs that reached a terminal execution outcome.",
	},
	[]string{"kind", "status"}, // 'completed', 'failed'
)

var jobsRequeuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_requeued_total",
		Help: "Retriable failures folded back into the queue.",
	},
	[]string{"kind", "cause"}, // 'error', 'no_key', 'timeout'
)

var jobsReapedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_jobs_reaped_total",
		Help: "Stuck processing jobs reclaimed by the watchdog.",
	},
)

var generationLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_call_latency_ms",
		Help:    "External generation call latency distribution in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 15000, 30000, 60000, 180000},
	},
	[]string{"kind", "result"}, // 'ok', 'error'
)

func IncJobSubmitted(kind, outcome string) {
	jobsSubmittedTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

func IncJobFinished(kind, status string) {
	jobsFinishedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncJobRequeued(kind, cause string) {
	jobsRequeuedTotal.WithLabelValues(norm(kind), norm(cause)).Inc()
}

func IncJobsReaped(n int) { jobsReapedTotal.Add(float64(n)) }

func ObserveGenerationLatency(kind, result string, d time.Duration) {
	generationLatencyMs.WithLabelValues(norm(kind), norm(result)).Observe(float64(d.Milliseconds()))
}
