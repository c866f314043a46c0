package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the run counters exposed by the status server. Each Metrics
// owns its registry so tests and repeated runs do not collide on the
// default one.
type Metrics struct {
	Registry *prometheus.Registry

	rowsTotal     *prometheus.CounterVec
	themeDuration *prometheus.HistogramVec
	themeFailures *prometheus.CounterVec
	messages      *prometheus.GaugeVec
	orgs          prometheus.Gauge
	phase         *prometheus.GaugeVec
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hapi",
			Name:      "rows_written_total",
			Help:      "Rows written to the warehouse, by theme.",
		}, []string{"theme"}),
		themeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hapi",
			Name:      "theme_duration_seconds",
			Help:      "Time taken to populate a theme.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600},
		}, []string{"theme", "result"}),
		themeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hapi",
			Name:      "theme_failures_total",
			Help:      "Themes that stopped with an error.",
		}, []string{"theme"}),
		messages: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hapi",
			Name:      "messages",
			Help:      "Distinct error manager messages, by severity.",
		}, []string{"severity"}),
		orgs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hapi",
			Name:      "orgs",
			Help:      "Canonical organisations known to the run.",
		}),
		phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hapi",
			Name:      "run_phase",
			Help:      "Current run phase (1 for the active phase).",
		}, []string{"phase"}),
	}
}

func (m *Metrics) addRows(theme string, rows int) {
	m.rowsTotal.WithLabelValues(theme).Add(float64(rows))
}

func (m *Metrics) observeTheme(theme string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.themeFailures.WithLabelValues(theme).Inc()
	}
	m.themeDuration.WithLabelValues(theme, result).Observe(seconds)
}

func (m *Metrics) setCounts(errs, warnings, orgs int) {
	m.messages.WithLabelValues("error").Set(float64(errs))
	m.messages.WithLabelValues("warning").Set(float64(warnings))
	m.orgs.Set(float64(orgs))
}

func (m *Metrics) setPhase(phase Phase) {
	m.phase.Reset()
	m.phase.WithLabelValues(string(phase)).Set(1)
}
