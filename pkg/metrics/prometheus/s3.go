// Package prometheus provides the Prometheus implementations of the
// collectors handed out by pkg/metrics. Importing it for side effects
// registers the constructors:
//
//	import _ "github.com/marmos91/visiblefs/pkg/metrics/prometheus"
package prometheus

import (
	"time"

	"github.com/marmos91/visiblefs/pkg/metrics"
	s3store "github.com/marmos91/visiblefs/pkg/storage/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterS3MetricsConstructor(NewS3Metrics)
	metrics.RegisterWriterMetricsConstructor(NewWriterMetrics)
}

// latencyBuckets are shared by every millisecond-duration histogram.
var latencyBuckets = []float64{
	10,    // 10ms - metadata operations
	50,    // 50ms - small objects
	100,   // 100ms
	500,   // 500ms
	1000,  // 1s
	5000,  // 5s - large uploads
	10000, // 10s
	30000, // 30s - slow visibility
	60000, // 60s - default visibility timeout
}

// s3Metrics is the Prometheus implementation of s3store.Metrics.
type s3Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewS3Metrics creates a new Prometheus-backed s3store.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewS3Metrics() s3store.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &s3Metrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "visiblefs_s3_operations_total",
				Help: "Total number of S3 operations by operation type and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "visiblefs_s3_operation_duration_milliseconds",
				Help:    "Duration of S3 operations in milliseconds",
				Buckets: latencyBuckets,
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "visiblefs_s3_bytes_transferred_total",
				Help: "Total bytes transferred via S3 operations",
			},
			[]string{"operation"},
		),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}
