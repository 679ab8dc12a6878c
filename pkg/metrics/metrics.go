// Package metrics provides Prometheus metrics for extraction runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsExtracted counts records emitted per stream.
	RecordsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcore_records_extracted_total",
		Help: "Total number of records extracted, by stream",
	}, []string{"stream"})

	// Checkpoints counts state flushes per stream.
	Checkpoints = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcore_checkpoints_total",
		Help: "Total number of state checkpoints written, by stream",
	}, []string{"stream"})

	// StreamsFinished counts streams reaching a terminal status.
	StreamsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcore_streams_finished_total",
		Help: "Total number of streams reaching a terminal status",
	}, []string{"status"})

	// ExtractionDuration observes per-stream extraction time.
	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tapcore_extraction_duration_seconds",
		Help:    "Wall-clock duration of stream extraction",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"stream"})
)
