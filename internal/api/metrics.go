package api

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

func metricLabels() prometheus.Labels {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "quizrank-api"
	}
	instance := os.Getenv("INSTANCE_ID")
	if instance == "" {
		instance, _ = os.Hostname()
	}
	return prometheus.Labels{"service": service, "instance": instance}
}

var reg = prometheus.WrapRegistererWith(metricLabels(), prometheus.DefaultRegisterer)

var (
	// RequestDuration records per-request latency
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal records request counts
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SubmissionTotal records graded submissions by outcome
	SubmissionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_total",
			Help: "Total number of quiz submissions",
		},
		[]string{"status"},
	)

	apiOutboxDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_outbox_dispatch_total",
			Help: "Total number of outbox dispatch attempts",
		},
		[]string{"status", "reason"},
	)

	apiOutboxDispatchLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "api_outbox_dispatch_latency_seconds",
			Help:    "Latency of one outbox dispatch loop in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	apiOutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_outbox_pending",
			Help: "Current number of pending outbox events",
		},
	)

	rankingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_cache_total",
			Help: "Ranking cache lookups by outcome",
		},
		[]string{"result"},
	)
)

func init() {
	reg.MustRegister(RequestDuration)
	reg.MustRegister(RequestTotal)
	reg.MustRegister(SubmissionTotal)
	reg.MustRegister(apiOutboxDispatchTotal)
	reg.MustRegister(apiOutboxDispatchLatencySeconds)
	reg.MustRegister(apiOutboxPending)
	reg.MustRegister(rankingCacheTotal)
}
