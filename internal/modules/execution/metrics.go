package execution

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xfw5/Market-Research/internal/market_regime"
)

// Metrics holds the Prometheus collectors updated after every cycle
type Metrics struct {
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	Orders        *prometheus.CounterVec
	Exposure      prometheus.Gauge
	Target        prometheus.Gauge
	RegimeZone    *prometheus.GaugeVec
	Monitored     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg (skipped when nil)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_cycles_total",
				Help: "Decision cycles by outcome",
			},
			[]string{"outcome"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "engine_cycle_duration_seconds",
				Help:    "Wall time of one decision cycle",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_orders_total",
				Help: "Orders submitted by action, reason and result",
			},
			[]string{"action", "reason", "result"},
		),
		Exposure: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_exposure_ratio",
				Help: "Used capital / total capital after the last cycle",
			},
		),
		Target: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_target_exposure_ratio",
				Help: "Target exposure of the last classified regime",
			},
		),
		RegimeZone: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_regime_zone",
				Help: "1 for the current regime zone, 0 otherwise",
			},
			[]string{"zone"},
		),
		Monitored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "engine_profit_monitor_size",
				Help: "Number of positions under profit monitoring",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Cycles, m.CycleDuration, m.Orders, m.Exposure, m.Target, m.RegimeZone, m.Monitored)
	}
	return m
}

var allZones = []market_regime.Zone{
	market_regime.ZoneBearish,
	market_regime.ZoneTransitional,
	market_regime.ZoneStrong,
	market_regime.ZoneNeutral,
	market_regime.ZoneUnknown,
}

// Observe records one finished cycle
func (m *Metrics) Observe(report *CycleReport, monitored int) {
	if m == nil {
		return
	}

	m.Cycles.WithLabelValues(string(report.Outcome)).Inc()
	m.CycleDuration.Observe(report.Duration().Seconds())
	m.Exposure.Set(report.Exposure)
	m.Target.Set(report.Regime.Target)
	m.Monitored.Set(float64(monitored))

	for _, zone := range allZones {
		v := 0.0
		if zone == report.Regime.Zone {
			v = 1
		}
		m.RegimeZone.WithLabelValues(string(zone)).Set(v)
	}

	for _, rec := range report.Orders() {
		result := "filled"
		switch {
		case rec.Error != "":
			result = "error"
		case !rec.Filled():
			result = "rejected"
		}
		m.Orders.WithLabelValues(string(rec.Action), string(rec.Reason), result).Inc()
	}
}
