package prometheus

import (
	"github.com/marmos91/execgate/pkg/backpressure"
	"github.com/marmos91/execgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterBackpressureMetricsConstructor(newBackpressureMetrics)
}

// backpressureMetrics is the Prometheus implementation of
// backpressure.Metrics.
type backpressureMetrics struct {
	status    prometheus.Gauge
	toggles   prometheus.Counter
	executed  prometheus.Gauge
	certified prometheus.Gauge
}

// newBackpressureMetrics creates the Prometheus-backed Metrics instance.
func newBackpressureMetrics() backpressure.Metrics {
	reg := metrics.GetRegistry()

	return &backpressureMetrics{
		status: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "execgate_backpressure_status",
				Help: "Current backpressure flag (1 = active)",
			},
		),
		toggles: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "execgate_backpressure_toggles_total",
				Help: "Total actual backpressure flag changes",
			},
		),
		executed: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "execgate_checkpoint_executed_watermark",
				Help: "Highest executed checkpoint sequence number",
			},
		),
		certified: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "execgate_checkpoint_certified_watermark",
				Help: "Highest certified checkpoint sequence number",
			},
		),
	}
}

func (m *backpressureMetrics) RecordBackpressure(active bool) {
	if active {
		m.status.Set(1)
	} else {
		m.status.Set(0)
	}
}

func (m *backpressureMetrics) RecordWatermarks(executed, certified uint64) {
	m.executed.Set(float64(executed))
	m.certified.Set(float64(certified))
}

func (m *backpressureMetrics) CountToggle() {
	m.toggles.Inc()
}
