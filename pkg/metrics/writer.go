package metrics

import (
	"github.com/marmos91/visiblefs/pkg/storage/wrapperfs"
)

// NewWriterMetrics returns the Prometheus-backed collector for size-aware
// writers, or nil when metrics are disabled.
func NewWriterMetrics() wrapperfs.Metrics {
	if !IsEnabled() || newPrometheusWriterMetrics == nil {
		return nil
	}
	return newPrometheusWriterMetrics()
}

var newPrometheusWriterMetrics func() wrapperfs.Metrics

// RegisterWriterMetricsConstructor registers the Prometheus writer metrics constructor.
func RegisterWriterMetricsConstructor(constructor func() wrapperfs.Metrics) {
	newPrometheusWriterMetrics = constructor
}
