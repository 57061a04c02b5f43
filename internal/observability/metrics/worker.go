// Package metrics holds the Prometheus instrumentation for both binaries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scanreader"

// WorkerMetrics covers the extraction pipeline: page outcomes, recognition
// latency, in-flight jobs and checkpoint write failures.
type WorkerMetrics struct {
	registry *prometheus.Registry

	PagesProcessed     *prometheus.CounterVec
	OCRDuration        prometheus.Histogram
	JobsInFlight       prometheus.Gauge
	CheckpointFailures prometheus.Counter
}

func NewWorkerMetrics() *WorkerMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &WorkerMetrics{
		registry: registry,
		PagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "pages_processed_total",
			Help:      "Pages handled by bulk extraction, by outcome.",
		}, []string{"outcome"}),
		OCRDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ocr_duration_seconds",
			Help:      "Wall time of one page recognition round-trip.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Bulk extraction jobs currently running.",
		}),
		CheckpointFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "checkpoint_failures_total",
			Help:      "Job progress writes that failed.",
		}),
	}
	registry.MustRegister(m.PagesProcessed, m.OCRDuration, m.JobsInFlight, m.CheckpointFailures)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
