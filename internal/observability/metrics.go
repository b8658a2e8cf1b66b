package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline.
type Metrics struct {
	ZipfilesProcessed *prometheus.CounterVec // labels: satellite
	ParseErrors       prometheus.Counter
	StoreErrors       prometheus.Counter
	IngestRunning     prometheus.Gauge

	ZipfileBytes       prometheus.Histogram
	ProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all ingest metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ZipfilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auscophub",
			Name:      "zipfiles_processed_total",
			Help:      "Total zipfiles successfully placed into the archive, by satellite.",
		}, []string{"satellite"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auscophub",
			Name:      "parse_errors_total",
			Help:      "Total zipfiles whose metadata could not be extracted.",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auscophub",
			Name:      "store_errors_total",
			Help:      "Total zipfiles that failed to materialize in their final directory.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "auscophub",
			Name:      "ingest_running",
			Help:      "1 while an ingest run is active, 0 otherwise.",
		}),
		ZipfileBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "auscophub",
			Name:      "zipfile_bytes",
			Help:      "Size distribution of ingested zipfiles.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 8),
		}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "auscophub",
			Name:      "processing_duration_seconds",
			Help:      "Duration of a complete parse-place-store cycle for one zipfile.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	prometheus.MustRegister(
		m.ZipfilesProcessed,
		m.ParseErrors,
		m.StoreErrors,
		m.IngestRunning,
		m.ZipfileBytes,
		m.ProcessingDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ZipfilesProcessed:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "auscophub", Name: "zipfiles_processed_total"}, []string{"satellite"}),
		ParseErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "auscophub", Name: "parse_errors_total"}),
		StoreErrors:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "auscophub", Name: "store_errors_total"}),
		IngestRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "auscophub", Name: "ingest_running"}),
		ZipfileBytes:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "auscophub", Name: "zipfile_bytes"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "auscophub", Name: "processing_duration_seconds"}),
	}
}
