package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shelfcrawl"

// Fetch result label values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Metrics holds the collectors updated by the crawl loop.
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal       *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	RecordsExtracted   prometheus.Counter
	ExtractionFailures prometheus.Counter
	Retries            prometheus.Counter
	FailedLinks        prometheus.Counter
	CheckpointSaves    *prometheus.CounterVec
	FrontierSize       prometheus.Gauge
}

// New creates a Metrics value with all collectors registered on a private
// registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of page fetches by result.",
			},
			[]string{"result"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of page fetches including the politeness delay.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Pages that produced a non-empty record.",
		}),
		ExtractionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Pages recorded with an empty record.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Failed fetches pushed back to the frontier head.",
		}),
		FailedLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_links_total",
			Help:      "Links that exhausted their retry budget.",
		}),
		CheckpointSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoint_saves_total",
				Help:      "Checkpoint saves by result.",
			},
			[]string{"result"},
		),
		FrontierSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frontier_size",
			Help:      "Links currently waiting in the frontier.",
		}),
	}

	m.registry.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.RecordsExtracted,
		m.ExtractionFailures,
		m.Retries,
		m.FailedLinks,
		m.CheckpointSaves,
		m.FrontierSize,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
