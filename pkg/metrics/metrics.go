// Package metrics registers the Prometheus instruments for the ingestion
// service and serves them on a dedicated port.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the service emits.
type Metrics struct {
	registry *prometheus.Registry

	// ParsedStatements counts statements that completed the parse pipeline,
	// labelled by detected bank code.
	ParsedStatements *prometheus.CounterVec
	// ParseFailures counts hard pipeline failures by failed stage.
	ParseFailures *prometheus.CounterVec
	// ParseDuration observes the wall time of one full pipeline run.
	ParseDuration prometheus.Histogram

	ImportedRows  prometheus.Counter
	DuplicateRows prometheus.Counter
}

// New builds a Metrics set on its own registry, with the standard Go and
// process collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ParsedStatements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "parsed_statements_total",
			Help:      "Statements that completed the parse pipeline.",
		}, []string{"bank_code"}),
		ParseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "parse_failures_total",
			Help:      "Statements rejected by the parse pipeline.",
		}, []string{"stage"}),
		ParseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statement_ingest",
			Name:      "parse_duration_seconds",
			Help:      "Wall time of one full parse pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ImportedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "imported_rows_total",
			Help:      "Transactions inserted by import calls.",
		}),
		DuplicateRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "statement_ingest",
			Name:      "duplicate_rows_total",
			Help:      "Transactions skipped by the dedup index.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
