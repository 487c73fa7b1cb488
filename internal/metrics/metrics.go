// Package metrics provides Prometheus metrics for the sheet store and editor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	IndexEntries           prometheus.Gauge

	AutosavesTotal     *prometheus.CounterVec
	SeedResourcesTotal *prometheus.CounterVec
	WatchImportsTotal  *prometheus.CounterVec
	IndexRepairsTotal  *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWithRegisterer(reg)
	m.registry = reg
	return m
}

// NewWithRegisterer registers the collectors with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StoreOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheets_store_operations_total",
				Help: "Total number of sheet store operations",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sheets_store_operation_duration_seconds",
				Help:    "Duration of sheet store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		IndexEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sheets_index_entries",
				Help: "Number of sheets listed in the catalog index",
			},
		),
		AutosavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheets_autosaves_total",
				Help: "Total number of editor autosaves",
			},
			[]string{"status"},
		),
		SeedResourcesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheets_seed_resources_total",
				Help: "Seed manifest resources processed",
			},
			[]string{"status"},
		),
		WatchImportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheets_watch_imports_total",
				Help: "Files imported from the watched inbox directory",
			},
			[]string{"status"},
		),
		IndexRepairsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheets_index_repairs_total",
				Help: "Index rebuild runs",
			},
			[]string{"status"},
		),
	}
}

// Handler serves the registry created by New.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStoreOperation records a store operation outcome and its duration.
func (m *Metrics) RecordStoreOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status(err)).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetIndexEntries(n int) {
	if m == nil {
		return
	}
	m.IndexEntries.Set(float64(n))
}

func (m *Metrics) RecordAutosave(err error) {
	if m == nil {
		return
	}
	m.AutosavesTotal.WithLabelValues(status(err)).Inc()
}

// RecordSeed counts a seed resource as seeded, skipped or failed.
func (m *Metrics) RecordSeed(outcome string) {
	if m == nil {
		return
	}
	m.SeedResourcesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordWatchImport(err error) {
	if m == nil {
		return
	}
	m.WatchImportsTotal.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) RecordIndexRepair(err error) {
	if m == nil {
		return
	}
	m.IndexRepairsTotal.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
