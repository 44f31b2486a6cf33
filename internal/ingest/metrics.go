package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for ingestion. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	files        prometheus.Counter
	records      prometheus.Counter
	rowErrors    *prometheus.CounterVec
	fileErrors   *prometheus.CounterVec
	fileDuration prometheus.Histogram
}

// NewMetrics creates the ingestion collectors and registers them on reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		files:      prometheus.NewCounter(prometheus.CounterOpts{Name: "spice_ingest_files_total", Help: "Files parsed successfully"}),
		records:    prometheus.NewCounter(prometheus.CounterOpts{Name: "spice_ingest_records_total", Help: "Records emitted"}),
		rowErrors:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "spice_ingest_row_errors_total", Help: "Rows dropped, by reason"}, []string{"kind"}),
		fileErrors: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "spice_ingest_file_errors_total", Help: "Files skipped, by reason"}, []string{"kind"}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spice_ingest_file_seconds",
			Help:    "Time to resolve, read and parse one file",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.files, m.records, m.rowErrors, m.fileErrors, m.fileDuration)
	}
	return m
}

func (m *Metrics) observeFile(seconds float64) {
	if m == nil {
		return
	}
	m.files.Inc()
	m.fileDuration.Observe(seconds)
}

func (m *Metrics) recordEmitted() {
	if m == nil {
		return
	}
	m.records.Inc()
}

func (m *Metrics) rowDropped(kind string) {
	if m == nil {
		return
	}
	m.rowErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) fileSkipped(kind string) {
	if m == nil {
		return
	}
	m.fileErrors.WithLabelValues(kind).Inc()
}
