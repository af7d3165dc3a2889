// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReviewsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_reviews_processed_total",
			Help: "Total number of reviews processed, by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reply_stage_duration_seconds",
			Help: "Duration of each pipeline stage in seconds",
		},
		[]string{"stage"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_llm_calls_total",
			Help: "Total number of language-model backend calls, by purpose and status",
		},
		[]string{"purpose", "status"},
	)

	LLMLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "reply_llm_latency_seconds",
			Help: "Latency of language-model backend calls in seconds",
		},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reply_batch_duration_seconds",
			Help: "Duration of full batch runs in seconds",
		},
		[]string{"platform"},
	)

	RepliesAwaitingApproval = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reply_awaiting_approval",
			Help: "Replies currently waiting for manual approval",
		},
	)

	RegenerationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_regeneration_attempts_total",
			Help: "Regeneration attempts triggered by rejected replies",
		},
		[]string{"platform"},
	)
)
