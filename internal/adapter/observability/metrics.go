package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_tasks_total",
			Help: "Total number of tasks processed by terminal status",
		},
		[]string{"status"},
	)
	StageCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_stage_completions_total",
			Help: "Total number of completed stage invocations",
		},
		[]string{"stage"},
	)
	StageRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_stage_retries_total",
			Help: "Total number of stage worker retries",
		},
		[]string{"stage"},
	)
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_stage_duration_seconds",
			Help:    "Stage worker duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)
	TokensUsedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_tokens_used_total",
			Help: "Cumulative tokens reported by stage workers",
		},
	)
	ReworksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_reworks_total",
			Help: "Total number of rework transitions back to generate",
		},
	)
	RateLimitWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_waits_total",
			Help: "Times the remote-API limiter stalled a call before quota exhaustion",
		},
	)
	BenchmarkTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchmark_tasks_total",
			Help: "Benchmark fan task outcomes by status",
		},
		[]string{"status"},
	)
)

// InitMetrics registers all collectors. Call once per process.
func InitMetrics() {
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(StageCompletionsTotal)
	prometheus.MustRegister(StageRetriesTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(TokensUsedTotal)
	prometheus.MustRegister(ReworksTotal)
	prometheus.MustRegister(RateLimitWaits)
	prometheus.MustRegister(BenchmarkTasksTotal)
}
