package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LimiterGauges tracks rate limiter queue depth and in-flight admissions
	LimiterGauges = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review_insights_limiter",
			Help: "Provider rate limiter gauges by limiter name and type (queued, in_flight)",
		},
		[]string{"limiter", "type"},
	)

	// RetryAttempts counts retried provider operations by error kind
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_insights_retry_attempts_total",
			Help: "Retried provider operations by error kind",
		},
		[]string{"kind"},
	)

	// TaskOutcomes counts retrieval tasks by platform and terminal state
	TaskOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_insights_tasks_total",
			Help: "Retrieval tasks by platform and terminal state",
		},
		[]string{"platform", "state"},
	)

	// ProviderRequests tracks provider call latency
	ProviderRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_insights_provider_request_seconds",
			Help:    "Provider request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// ReviewsProcessed counts normalized and rejected raw items
	ReviewsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_insights_reviews_total",
			Help: "Raw provider items by normalization result (accepted, rejected)",
		},
		[]string{"platform", "result"},
	)
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
