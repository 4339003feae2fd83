package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "scribed"

// HTTP metrics, incremented by the API middleware.
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Pipeline counters, incremented directly by the transcription pipeline and
// the task driver.
var (
	TasksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_processed_total",
		Help:      "Queue tasks processed, by terminal outcome.",
	}, []string{"outcome"})

	SegmentsTranscribed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_transcribed_total",
		Help:      "Audio segments sent to the engine, by outcome.",
	}, []string{"outcome"})

	TranscribeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_duration_seconds",
		Help:      "Wall-clock duration of full-file transcriptions.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s → ~1h
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TasksProcessed,
		SegmentsTranscribed,
		TranscribeDuration,
	)
}
