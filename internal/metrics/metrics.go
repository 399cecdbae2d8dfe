package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_admissions_total",
			Help: "Total number of admission decisions by outcome",
		},
		[]string{"decision"},
	)

	StoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_ratelimit_store_errors_total",
			Help: "Total number of counter store failures",
		},
	)

	AdmissionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_admission_latency_seconds",
			Help:    "Latency of admission decisions",
			Buckets: prometheus.DefBuckets,
		},
	)

	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Total number of messages forwarded to the chat gateway",
		},
		[]string{"service"},
	)
)

func Register() {
	prometheus.MustRegister(
		AdmissionsTotal,
		StoreErrorsTotal,
		AdmissionLatency,
		MessagesSentTotal,
	)
}
