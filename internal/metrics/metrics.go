// Package metrics provides Prometheus metrics for runs and storage.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns pocket's metrics on a private registry. A nil *Collector
// is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	storageErrors *prometheus.CounterVec
	treeNodes     prometheus.Gauge
}

// New registers the metrics on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Collector{
		reg: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocket_runs_total",
				Help: "Total number of code runs",
			},
			[]string{"language", "outcome"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pocket_run_duration_seconds",
				Help:    "Code run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"language"},
		),
		storageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocket_storage_errors_total",
				Help: "Storage operations that failed",
			},
			[]string{"op"},
		),
		treeNodes: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "pocket_tree_nodes",
				Help: "Number of files and folders in the open project",
			},
		),
	}
}

// WithProcessCollectors adds Go runtime and process metrics.
func (c *Collector) WithProcessCollectors() *Collector {
	c.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler returns the HTTP handler for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// RecordRun records a finished run. outcome is "success", "failure",
// "unsupported" or "timeout".
func (c *Collector) RecordRun(language, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(language, outcome).Inc()
	c.runDuration.WithLabelValues(language).Observe(duration.Seconds())
}

// RecordStorageError counts a failed storage operation.
func (c *Collector) RecordStorageError(op string) {
	if c == nil {
		return
	}
	c.storageErrors.WithLabelValues(op).Inc()
}

// SetTreeNodes sets the open project's node count.
func (c *Collector) SetTreeNodes(n int) {
	if c == nil {
		return
	}
	c.treeNodes.Set(float64(n))
}
