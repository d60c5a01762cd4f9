package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Metrics holds the simulator's collectors.
type Metrics struct {
	StateVisits     *prometheus.CounterVec
	Turns           *prometheus.CounterVec
	MatchConfidence *prometheus.HistogramVec
	Fallbacks       *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	SessionsEnded   prometheus.Counter
	CallExchanges   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StateVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Name:      "state_visits_total",
			Help:      "Total number of state entries.",
		}, []string{"flow", "state"}),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Name:      "turns_total",
			Help:      "Caller turns by channel and outcome.",
		}, []string{"channel", "outcome"}),
		MatchConfidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ivr",
			Name:      "match_confidence",
			Help:      "Confidence of accepted option matches.",
			Buckets:   []float64{0.6, 0.7, 0.72, 0.8, 0.9, 0.95, 1},
		}, []string{"outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ivr",
			Name:      "fallbacks_total",
			Help:      "Forced transfers after repeated misses, by the state the caller was stuck in.",
		}, []string{"flow", "state"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ivr",
			Name:      "active_sessions",
			Help:      "Calls currently registered.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ivr",
			Name:      "sessions_ended_total",
			Help:      "Calls ended or evicted.",
		}),
		CallExchanges: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ivr",
			Name:      "call_exchanges",
			Help:      "Caller turns per ended call.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}
	reg.MustRegister(m.StateVisits, m.Turns, m.MatchConfidence, m.Fallbacks, m.ActiveSessions, m.SessionsEnded, m.CallExchanges)
	return m
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) {
			m.StateVisits.WithLabelValues(e.Flow, e.State).Inc()
		},
		OnTurn: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(string(e.Channel), string(e.Outcome)).Inc()
			if e.MatchedOption != "" {
				m.MatchConfidence.WithLabelValues(string(e.Outcome)).Observe(e.Confidence)
			}
		},
		OnFallback: func(_ context.Context, e *domain.StateEvent) {
			m.Fallbacks.WithLabelValues(e.Flow, e.State).Inc()
		},
		OnSessionStart: func(context.Context, *domain.SessionEvent) {
			m.ActiveSessions.Inc()
		},
		OnSessionEnd: func(_ context.Context, e *domain.SessionEvent) {
			m.ActiveSessions.Dec()
			m.SessionsEnded.Inc()
			m.CallExchanges.Observe(float64(e.Exchanges))
		},
	}
}
