// Package metrics exposes Prometheus instruments for batch conversion.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for FilesTotal
const (
	OutcomeConverted = "converted"
	OutcomeSkipped   = "skipped"
)

// Metrics holds the batch instruments
type Metrics struct {
	BatchesTotal      prometheus.Counter
	FilesTotal        *prometheus.CounterVec
	FileFailuresTotal *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
}

// New creates the instruments and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BatchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dicomcards_batches_total",
				Help: "Batches run",
			},
		),

		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dicomcards_files_total",
				Help: "Files processed by outcome",
			},
			[]string{"outcome"},
		),

		FileFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dicomcards_file_failures_total",
				Help: "Skipped files by error kind",
			},
			[]string{"kind"},
		),

		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dicomcards_batch_duration_seconds",
				Help:    "Batch wall time",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),
	}
}

// FileConverted records a file that produced a card
func (m *Metrics) FileConverted() {
	m.FilesTotal.WithLabelValues(OutcomeConverted).Inc()
}

// FileSkipped records a file skipped with the given error kind
func (m *Metrics) FileSkipped(kind string) {
	m.FilesTotal.WithLabelValues(OutcomeSkipped).Inc()
	m.FileFailuresTotal.WithLabelValues(kind).Inc()
}

// BatchFinished records one completed batch
func (m *Metrics) BatchFinished(d time.Duration) {
	m.BatchesTotal.Inc()
	m.BatchDuration.Observe(d.Seconds())
}
