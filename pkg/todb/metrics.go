package todb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts template cache traffic. A nil *Metrics records nothing.
type Metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	templates prometheus.Gauge
	failures  *prometheus.CounterVec
}

// NewMetrics registers the converter collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Name: "sqlbind_template_cache_hits_total",
			Help: "Conversions served from the template cache",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name: "sqlbind_template_cache_misses_total",
			Help: "Conversions that had to tokenize the query",
		}),
		templates: f.NewGauge(prometheus.GaugeOpts{
			Name: "sqlbind_templates_cached",
			Help: "Number of templates currently cached",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlbind_conversion_failures_total",
			Help: "Failed conversions by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) cached(n int) {
	if m != nil {
		m.templates.Set(float64(n))
	}
}

func (m *Metrics) failed(reason string) {
	if m != nil {
		m.failures.WithLabelValues(reason).Inc()
	}
}
