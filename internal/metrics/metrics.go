// Package metrics provides Prometheus metrics for the ingestion engine.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec // labels: partition, outcome
	FlushesTotal  *prometheus.CounterVec // labels: partition
	BreakerTrips  *prometheus.CounterVec // labels: partition
	GapRemaining  *prometheus.GaugeVec   // labels: partition
	ChunkDuration *prometheus.HistogramVec

	// Manifest metrics
	ManifestEntries prometheus.Gauge

	// Consolidation metrics
	ConsolidationDuration *prometheus.HistogramVec // labels: category
	ConsolidatedRows      *prometheus.GaugeVec     // labels: category
	ConsolidationFailures *prometheus.CounterVec   // labels: category
}

// Config holds metrics configuration.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"` // e.g. ":9090"
	Namespace string `yaml:"namespace"`
}

// Init registers and returns the engine metrics.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "matchingest"
	}

	return &Metrics{
		FetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total fetch probes by outcome",
			},
			[]string{"partition", "outcome"},
		),
		FlushesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifest_flushes_total",
				Help:      "Total manifest flushes during fetch runs",
			},
			[]string{"partition"},
		),
		BreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_trips_total",
				Help:      "Circuit breaker trips (consecutive NotFound limit reached)",
			},
			[]string{"partition"},
		),
		GapRemaining: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gap_remaining_ids",
				Help:      "Ids still missing from the partition's band",
			},
			[]string{"partition"},
		),
		ChunkDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chunk_duration_seconds",
				Help:      "Wall time to process one fetch chunk",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"partition"},
		),
		ManifestEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "manifest_entries",
				Help:      "Total entries in the manifest",
			},
		),
		ConsolidationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "consolidation_duration_seconds",
				Help:      "Wall time to rebuild a consolidated artifact",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"category"},
		),
		ConsolidatedRows: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "consolidated_rows",
				Help:      "Rows in the latest consolidated artifact",
			},
			[]string{"category"},
		),
		ConsolidationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consolidation_failures_total",
				Help:      "Consolidation attempts that failed",
			},
			[]string{"category"},
		),
	}
}

// Serve starts the metrics HTTP listener in the background.
func Serve(cfg Config, log *slog.Logger) {
	if !cfg.Enabled || cfg.Address == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics server listening", "address", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()
}

// ObserveFetch records one probe outcome.
func (m *Metrics) ObserveFetch(partition, outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(partition, outcome).Inc()
}

// ObserveFlush records one manifest flush.
func (m *Metrics) ObserveFlush(partition string) {
	if m == nil {
		return
	}
	m.FlushesTotal.WithLabelValues(partition).Inc()
}

// ObserveBreakerTrip records a circuit-breaker trip.
func (m *Metrics) ObserveBreakerTrip(partition string) {
	if m == nil {
		return
	}
	m.BreakerTrips.WithLabelValues(partition).Inc()
}

// SetGapRemaining updates the remaining-ids gauge.
func (m *Metrics) SetGapRemaining(partition string, remaining int64) {
	if m == nil {
		return
	}
	m.GapRemaining.WithLabelValues(partition).Set(float64(remaining))
}

// ObserveChunk records the duration of a completed chunk.
func (m *Metrics) ObserveChunk(partition string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChunkDuration.WithLabelValues(partition).Observe(d.Seconds())
}

// SetManifestEntries updates the manifest size gauge.
func (m *Metrics) SetManifestEntries(n int) {
	if m == nil {
		return
	}
	m.ManifestEntries.Set(float64(n))
}

// ObserveConsolidation records a consolidation attempt.
func (m *Metrics) ObserveConsolidation(category string, rows int64, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ConsolidationFailures.WithLabelValues(category).Inc()
		return
	}
	m.ConsolidationDuration.WithLabelValues(category).Observe(d.Seconds())
	m.ConsolidatedRows.WithLabelValues(category).Set(float64(rows))
}
