package metrics

import (
	"github.com/marmos91/execgate/pkg/backpressure"
)

// NewBackpressureMetrics creates a new Prometheus-backed Metrics instance
// for the backpressure manager.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBackpressureMetrics() backpressure.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusBackpressureMetrics()
}

// newPrometheusBackpressureMetrics is implemented in
// pkg/metrics/prometheus.
var newPrometheusBackpressureMetrics func() backpressure.Metrics

// RegisterBackpressureMetricsConstructor registers the Prometheus
// backpressure metrics constructor. Called by pkg/metrics/prometheus
// during package initialization.
func RegisterBackpressureMetricsConstructor(constructor func() backpressure.Metrics) {
	newPrometheusBackpressureMetrics = constructor
}
