package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Finished orchestration runs partitioned by terminal state
	distributionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_distribution_runs_total",
			Help: "Total number of lead distribution runs by terminal state",
		},
		[]string{"state"},
	)

	// Adapter calls partitioned by advertiser type and attempt status
	distributionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_distribution_attempts_total",
			Help: "Total number of advertiser delivery attempts",
		},
		[]string{"advertiser_type", "status"},
	)

	adapterRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_adapter_request_duration_seconds",
			Help:    "Advertiser adapter call latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"advertiser_type"},
	)

	affiliateCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_affiliate_callbacks_total",
			Help: "Total number of affiliate callbacks by outcome",
		},
		[]string{"status"},
	)
)
