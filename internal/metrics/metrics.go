package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size in bytes",
			Buckets: []float64{100, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
		},
		[]string{"method", "route", "status"},
	)

	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		},
	)

	SnowflakeIDsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowflake_ids_generated_total",
			Help: "IDs minted, by machine id",
		},
		[]string{"machine_id"},
	)

	SnowflakeClockRegressions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snowflake_clock_regressions_total",
			Help: "Generate calls refused because the wall clock moved backwards",
		},
	)

	SnowflakeSequenceExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snowflake_sequence_exhausted_total",
			Help: "Times a generator used all 4096 sequence values in one millisecond",
		},
	)

	PipelineArticlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_articles_total",
			Help: "Articles handled by the publishing pipeline, by result",
		},
		[]string{"result"},
	)

	PipelineRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Wall time of a full pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal, HTTPDurationSeconds, HTTPResponseSizeBytes, HTTPInFlight,
		SnowflakeIDsGenerated, SnowflakeClockRegressions, SnowflakeSequenceExhausted,
		PipelineArticlesTotal, PipelineRunDurationSeconds,
	)
}
