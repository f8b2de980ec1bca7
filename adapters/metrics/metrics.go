// Package metrics provides Prometheus metrics collection for the data layer.
package metrics

import (
	"time"

	"github.com/artpar/datalayer/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "datalayer"

// Collector holds all Prometheus metrics for the data layer.
type Collector struct {
	// Storage metrics
	OperationsTotal     *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	DocumentsWritten    *prometheus.CounterVec
	IndexEntriesWritten *prometheus.CounterVec
	UniqueViolations    *prometheus.CounterVec
	ReferencesFetched   prometheus.Counter

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"op", "result"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op"},
		),
		DocumentsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_written_total",
				Help:      "Total number of documents written",
			},
			[]string{"schema"},
		),
		IndexEntriesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_entries_written_total",
				Help:      "Total number of index entries written",
			},
			[]string{"schema"},
		),
		UniqueViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unique_violations_total",
				Help:      "Total number of rejected saves due to unique index violations",
			},
			[]string{"schema", "attr"},
		),
		ReferencesFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "references_resolved_total",
				Help:      "Total number of reference tokens resolved",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObserveOperation implements ports.Metrics.
func (c *Collector) ObserveOperation(op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.OperationsTotal.WithLabelValues(op, result).Inc()
	c.OperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// DocumentsSaved implements ports.Metrics.
func (c *Collector) DocumentsSaved(schemaPath string, n int) {
	c.DocumentsWritten.WithLabelValues(schemaPath).Add(float64(n))
}

// IndexEntriesSaved implements ports.Metrics.
func (c *Collector) IndexEntriesSaved(schemaPath string, n int) {
	c.IndexEntriesWritten.WithLabelValues(schemaPath).Add(float64(n))
}

// UniqueViolation implements ports.Metrics.
func (c *Collector) UniqueViolation(schemaPath, attr string) {
	c.UniqueViolations.WithLabelValues(schemaPath, attr).Inc()
}

// ReferencesResolved implements ports.Metrics.
func (c *Collector) ReferencesResolved(n int) {
	c.ReferencesFetched.Add(float64(n))
}

// ConfigReloaded records the outcome of a config reload.
func (c *Collector) ConfigReloaded(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

var _ ports.Metrics = (*Collector)(nil)
