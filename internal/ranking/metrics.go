package ranking

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

func metricLabels() prometheus.Labels {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "quizrank-aggregator"
	}
	instance := os.Getenv("INSTANCE_ID")
	if instance == "" {
		instance, _ = os.Hostname()
	}
	return prometheus.Labels{"service": service, "instance": instance}
}

var reg = prometheus.WrapRegistererWith(metricLabels(), prometheus.DefaultRegisterer)

var (
	aggregatorRunTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_run_total",
			Help: "Total number of aggregation runs by period and outcome",
		},
		[]string{"period", "status"},
	)

	aggregatorRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregator_run_duration_seconds",
			Help:    "Duration of one aggregation run in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"period"},
	)

	aggregatorRowsWritten = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregator_rows_written",
			Help: "Summary rows written by the most recent successful run",
		},
		[]string{"period"},
	)

	aggregatorRetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_rewrite_retry_total",
			Help: "Total number of rewrite attempt retries",
		},
		[]string{"period"},
	)
)

func init() {
	reg.MustRegister(aggregatorRunTotal)
	reg.MustRegister(aggregatorRunDuration)
	reg.MustRegister(aggregatorRowsWritten)
	reg.MustRegister(aggregatorRetryTotal)
}
