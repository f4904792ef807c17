// Package metrics exposes Prometheus instrumentation for expression loading,
// expansion and validation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for cardwright. A nil *Metrics is valid and
// records nothing, so components can be constructed without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// Catalog fetch latencies by source
	LoadLatency *prometheus.HistogramVec

	// Resolver population failures by reason
	LoadFailures *prometheus.CounterVec

	// Expansion latency by layer
	ExpandLatency *prometheus.HistogramVec

	// Validation outcomes by type, mode and outcome
	ValidationOutcome *prometheus.CounterVec

	// Saves by layer and outcome
	SaveOutcome *prometheus.CounterVec
}

// New creates a Metrics instance on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		LoadLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardwright_catalog_fetch_duration_seconds",
			Help:    "Duration of catalog fetches by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}), // source: "parameters", "factors", "conditions", "rules", "cards", "product_cards"

		LoadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardwright_catalog_load_failures_total",
			Help: "Catalog snapshot loads that failed, by reason",
		}, []string{"reason"}), // reason: "timeout", "error"

		ExpandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardwright_expand_duration_seconds",
			Help:    "Duration of nested expression expansion by layer",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"layer"}),

		ValidationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardwright_validations_total",
			Help: "Validation requests by type, mode and outcome",
		}, []string{"type", "mode", "outcome"}), // outcome: "passed", "failed", "error"

		SaveOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardwright_saves_total",
			Help: "Expression saves by layer and outcome",
		}, []string{"layer", "outcome"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLoadLatency records the duration of fetching one catalog source.
// Satisfies catalog.Observer.
func (m *Metrics) ObserveLoadLatency(source string, d time.Duration) {
	if m != nil {
		m.LoadLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementLoadFailure records a failed snapshot load.
func (m *Metrics) IncrementLoadFailure(reason string) {
	if m != nil {
		m.LoadFailures.WithLabelValues(reason).Inc()
	}
}

// ObserveExpandLatency records the duration of one expansion.
func (m *Metrics) ObserveExpandLatency(layer string, d time.Duration) {
	if m != nil {
		m.ExpandLatency.WithLabelValues(layer).Observe(d.Seconds())
	}
}

// IncrementValidation records a validation outcome.
func (m *Metrics) IncrementValidation(typ, mode, outcome string) {
	if m != nil {
		m.ValidationOutcome.WithLabelValues(typ, mode, outcome).Inc()
	}
}

// IncrementSave records a save outcome.
func (m *Metrics) IncrementSave(layer, outcome string) {
	if m != nil {
		m.SaveOutcome.WithLabelValues(layer, outcome).Inc()
	}
}
