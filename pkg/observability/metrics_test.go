package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnSessionStart(ctx, &domain.SessionEvent{Flow: "train_main"})
	hooks.OnStateEnter(ctx, &domain.StateEvent{Flow: "booking", State: "ask_class"})
	hooks.OnStateEnter(ctx, &domain.StateEvent{Flow: "booking", State: "ask_class"})
	hooks.OnTurn(ctx, &domain.TurnEvent{Channel: domain.ChannelKeypad, Outcome: domain.OutcomeKeypad, MatchedOption: "1", Confidence: 1})
	hooks.OnTurn(ctx, &domain.TurnEvent{Channel: domain.ChannelSpeech, Outcome: domain.OutcomeNoMatch})
	hooks.OnFallback(ctx, &domain.StateEvent{Flow: "train_main", State: "main_menu"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StateVisits.WithLabelValues("booking", "ask_class")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("keypad", "keypad")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("speech", "no_match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("train_main", "main_menu")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1, testutil.CollectAndCount(m.MatchConfidence))

	hooks.OnSessionEnd(ctx, &domain.SessionEvent{Exchanges: 4})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEnded))
}

func TestNewMetrics_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
