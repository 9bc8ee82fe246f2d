// Package metrics defines Prometheus metrics for catalog synchronization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogsync_fetch_duration_seconds",
			Help:    "Catalog request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_fetches_total",
			Help: "Total catalog requests",
		},
		[]string{"endpoint", "status"},
	)

	RecordsYielded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_records_yielded_total",
			Help: "Records produced by extraction iterators",
		},
		[]string{"kind"},
	)

	EntitiesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_entities_written_total",
			Help: "Entities accepted by the catalog",
		},
	)

	RelationsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogsync_relations_written_total",
			Help: "Relations accepted by the catalog",
		},
	)

	WriteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_write_errors_total",
			Help: "Items rejected by the catalog on write",
		},
		[]string{"kind"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	LastMarkerSave = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalogsync_last_marker_save_timestamp_seconds",
			Help: "Unix time of the last persisted extraction marker",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FetchDuration, FetchesTotal, RecordsYielded,
		EntitiesWritten, RelationsWritten, WriteErrors,
		ErrorsTotal, LastMarkerSave,
	)
}
