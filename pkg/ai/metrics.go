package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narrative_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "operation", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "narrative_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"model", "operation"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "narrative_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20), // 250, 500, ..., 5000
		},
		[]string{"model", "operation"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "narrative_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20), // 100, 200, ..., 2000
		},
		[]string{"model", "operation"},
	)
)

// Статусы для aiRequestsTotal.
const (
	statusSuccess       = "success"
	statusError         = "error"
	statusTimeout       = "timeout"
	statusEmptyResponse = "error_empty_response"
)

func observeRequest(model, operation, status string, started time.Time) {
	aiRequestsTotal.With(prometheus.Labels{"model": model, "operation": operation, "status": status}).Inc()
	if status == statusSuccess {
		aiRequestDuration.With(prometheus.Labels{"model": model, "operation": operation}).Observe(time.Since(started).Seconds())
	}
}

func observeUsage(model, operation string, usage UsageInfo) {
	if usage.PromptTokens <= 0 && usage.CompletionTokens <= 0 {
		return
	}
	labels := prometheus.Labels{"model": model, "operation": operation}
	aiPromptTokens.With(labels).Observe(float64(usage.PromptTokens))
	aiCompletionTokens.With(labels).Observe(float64(usage.CompletionTokens))
}
