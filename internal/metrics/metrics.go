// Package metrics holds the prometheus collectors of the tutor backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tutorlabs"

// Specialist outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
)

// Metrics is the set of collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	Turns             *prometheus.CounterVec
	TurnDuration      prometheus.Histogram
	SpecialistCalls   *prometheus.CounterVec
	SpecialistLatency *prometheus.HistogramVec
	DecisionFallbacks prometheus.Counter
	ComposerFallbacks prometheus.Counter
	SummaryFallbacks  prometheus.Counter
	ActiveSessions    prometheus.Gauge
	ActiveConnections prometheus.Gauge
	RateLimitedFrames prometheus.Counter
}

// New registers all collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestCount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
		}, []string{"method", "endpoint"}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed turns by classified intent",
		}, []string{"intent"}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End to end turn latency in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		SpecialistCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "specialist_invocations_total",
			Help:      "Specialist invocations by agent and outcome",
		}, []string{"agent", "outcome"}),
		SpecialistLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "specialist_latency_seconds",
			Help:      "Specialist call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"agent"}),
		DecisionFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_fallbacks_total",
			Help:      "Turns that used the rule based decision",
		}),
		ComposerFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "composer_fallbacks_total",
			Help:      "Replies produced by the templated fallback",
		}),
		SummaryFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_fallbacks_total",
			Help:      "Turn summaries produced by the rule based fallback",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions in the store",
		}),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_websocket_connections",
			Help:      "Number of open chat connections",
		}),
		RateLimitedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_rate_limited_total",
			Help:      "Chat messages rejected by the per-session rate limiter",
		}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// ObserveTurn records a finished turn.
func (m *Metrics) ObserveTurn(intent string, d time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(intent).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

// ObserveSpecialist records one specialist invocation.
func (m *Metrics) ObserveSpecialist(agent, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SpecialistCalls.WithLabelValues(agent, outcome).Inc()
	m.SpecialistLatency.WithLabelValues(agent).Observe(d.Seconds())
}

// DecisionFallback counts a rule based decision.
func (m *Metrics) DecisionFallback() {
	if m != nil {
		m.DecisionFallbacks.Inc()
	}
}

// ComposerFallback counts a templated reply.
func (m *Metrics) ComposerFallback() {
	if m != nil {
		m.ComposerFallbacks.Inc()
	}
}

// SummaryFallback counts a rule based turn summary.
func (m *Metrics) SummaryFallback() {
	if m != nil {
		m.SummaryFallbacks.Inc()
	}
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}

// ConnectionOpened increments the connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.ActiveConnections.Inc()
	}
}

// ConnectionClosed decrements the connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.ActiveConnections.Dec()
	}
}

// RateLimited counts a throttled chat message.
func (m *Metrics) RateLimited() {
	if m != nil {
		m.RateLimitedFrames.Inc()
	}
}
