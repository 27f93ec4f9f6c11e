package prometheus

import (
	"time"

	"github.com/marmos91/visiblefs/pkg/metrics"
	"github.com/marmos91/visiblefs/pkg/storage/wrapperfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// writerMetrics is the Prometheus implementation of wrapperfs.Metrics.
type writerMetrics struct {
	bytesCommitted prometheus.Counter
	closesTotal    *prometheus.CounterVec
	closeDuration  *prometheus.HistogramVec
	openWriters    prometheus.Gauge
}

// NewWriterMetrics creates a new Prometheus-backed wrapperfs.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewWriterMetrics() wrapperfs.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &writerMetrics{
		bytesCommitted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "visiblefs_writer_committed_bytes_total",
				Help: "Total bytes of files whose visibility was confirmed",
			},
		),
		closesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "visiblefs_writer_closes_total",
				Help: "Total number of writer close sequences by outcome",
			},
			[]string{"outcome"},
		),
		closeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "visiblefs_writer_close_duration_milliseconds",
				Help:    "Duration of writer close sequences (handle close plus visibility wait) in milliseconds",
				Buckets: latencyBuckets,
			},
			[]string{"outcome"},
		),
		openWriters: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "visiblefs_writer_open",
				Help: "Number of writers currently open",
			},
		),
	}
}

func (m *writerMetrics) RecordBytes(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesCommitted.Add(float64(bytes))
}

func (m *writerMetrics) ObserveClose(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.closesTotal.WithLabelValues(outcome).Inc()
	m.closeDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func (m *writerMetrics) SetOpenWriters(n int) {
	if m == nil {
		return
	}
	m.openWriters.Set(float64(n))
}
