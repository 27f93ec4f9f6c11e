package metrics

import (
	s3store "github.com/marmos91/visiblefs/pkg/storage/s3"
)

// NewS3Metrics returns the Prometheus-backed S3 collector, or nil when
// metrics are disabled or no implementation was linked in.
//
//	metrics.InitRegistry()
//	store, err := s3store.NewFromConfig(ctx, cfg, metrics.NewS3Metrics())
func NewS3Metrics() s3store.Metrics {
	if !IsEnabled() || newPrometheusS3Metrics == nil {
		return nil
	}
	return newPrometheusS3Metrics()
}

// newPrometheusS3Metrics is set by pkg/metrics/prometheus. The indirection
// keeps this package free of an import cycle with the implementation.
var newPrometheusS3Metrics func() s3store.Metrics

// RegisterS3MetricsConstructor registers the Prometheus S3 metrics constructor.
func RegisterS3MetricsConstructor(constructor func() s3store.Metrics) {
	newPrometheusS3Metrics = constructor
}
