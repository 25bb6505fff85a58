// Package metrics exposes Prometheus instrumentation for generation calls and
// session lifecycles.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/phrazzld/studbud/internal/domain"
	"github.com/phrazzld/studbud/internal/events"
	"github.com/phrazzld/studbud/internal/generation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studbud"

// OutcomeSuccess labels a generation that produced items.
const OutcomeSuccess = "success"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	generations      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	items            *prometheus.HistogramVec
	phaseTransitions *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation calls by provider, mode and outcome.",
		}, []string{"provider", "mode", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of generation calls, including response normalization.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}, []string{"provider", "mode"}),
		items: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_items",
			Help:      "Items kept per successful generation.",
			Buckets:   []float64{1, 5, 10, 20, 50, 100},
		}, []string{"mode"}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_phase_transitions_total",
			Help:      "Session phase transitions.",
		}, []string{"from", "to"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held by the server.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generations,
		m.latency,
		m.items,
		m.phaseTransitions,
		m.activeSessions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveGeneration records one generation call. A nil receiver is a no-op.
func (m *Metrics) ObserveGeneration(provider string, mode domain.GenerationMode, items int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	outcome := Outcome(err)
	m.generations.WithLabelValues(provider, mode.String(), outcome).Inc()
	m.latency.WithLabelValues(provider, mode.String()).Observe(elapsed.Seconds())
	if err == nil {
		m.items.WithLabelValues(mode.String()).Observe(float64(items))
	}
}

// HandleEvent implements events.EventHandler.
func (m *Metrics) HandleEvent(_ context.Context, event *events.SessionEvent) error {
	switch event.Type {
	case events.TypeSessionCreated:
		m.activeSessions.Inc()
	case events.TypeSessionClosed:
		m.activeSessions.Dec()
	case events.TypePhaseChanged:
		var change events.PhaseChange
		if err := event.UnmarshalPayload(&change); err != nil {
			return err
		}
		m.phaseTransitions.WithLabelValues(change.From, change.To).Inc()
	}
	return nil
}

// Outcome returns the metric label for a generation result.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}

	kind := generation.KindOf(err)
	switch {
	case errors.Is(kind, generation.ErrRead):
		return "read_error"
	case errors.Is(kind, generation.ErrAuth):
		return "auth_error"
	case errors.Is(kind, generation.ErrRateLimit):
		return "rate_limit"
	case errors.Is(kind, generation.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(kind, generation.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(kind, generation.ErrValidation):
		return "validation_error"
	default:
		return "provider_error"
	}
}
