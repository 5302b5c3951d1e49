package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the decision cycle.
type Metrics struct {
	CyclesTotal   prometheus.Counter
	CycleErrors   *prometheus.CounterVec // label: kind={undefined_stage,validation,forecast,decode,encode}
	DecisionsSent prometheus.Counter
	ControllerUp  prometheus.Gauge

	ET0      prometheus.Histogram
	WaterMM  prometheus.Histogram
	CycleDur prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cropwater",
			Name:      "cycles_total",
			Help:      "Decision cycles attempted.",
		}),
		CycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cropwater",
			Name:      "cycle_errors_total",
			Help:      "Cycles aborted, by error kind.",
		}, []string{"kind"}),
		DecisionsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cropwater",
			Name:      "decisions_published_total",
			Help:      "Decision events published to the broker.",
		}),
		ControllerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cropwater",
			Name:      "controller_running",
			Help:      "1 while the controller consumes readings.",
		}),
		ET0: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cropwater",
			Name:      "et0_mm_per_day",
			Help:      "Estimated reference evapotranspiration per cycle.",
			Buckets:   []float64{1, 2, 3, 4, 5, 5.5, 7, 9, 12, 16},
		}),
		WaterMM: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cropwater",
			Name:      "water_required_mm",
			Help:      "Water volume recommended per cycle.",
			Buckets:   []float64{0, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cropwater",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one decision cycle including forecast fetch.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
	}
}

// NewMetrics creates the instruments and registers them with the default
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal, m.CycleErrors, m.DecisionsSent, m.ControllerUp,
		m.ET0, m.WaterMM, m.CycleDur,
	)
	return m
}

// NewMetricsForTesting creates unregistered instruments so parallel tests do
// not trip "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
