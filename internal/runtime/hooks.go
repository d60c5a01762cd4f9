package runtime

import (
	"context"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

func (m *Machine) emitState(ctx context.Context, typ domain.EventType, s *domain.SessionState) {
	fn := m.hooks.OnStateEnter
	if typ == domain.EventStateLeave {
		fn = m.hooks.OnStateLeave
	}
	if fn == nil {
		return
	}
	fn(ctx, &domain.StateEvent{
		EventBase: domain.EventBase{Timestamp: m.now(), Type: typ, SessionID: s.SessionID},
		Flow:      s.ActiveFlow,
		State:     s.CurrentState,
	})
}

func (m *Machine) emitFallback(ctx context.Context, s *domain.SessionState) {
	if m.hooks.OnFallback == nil {
		return
	}
	m.hooks.OnFallback(ctx, &domain.StateEvent{
		EventBase: domain.EventBase{Timestamp: m.now(), Type: domain.EventFallback, SessionID: s.SessionID},
		Flow:      s.ActiveFlow,
		State:     s.CurrentState,
	})
}

func (m *Machine) emitTurn(ctx context.Context, s *domain.SessionState, ch domain.Channel, res *domain.TurnResult) {
	if m.hooks.OnTurn == nil {
		return
	}
	m.hooks.OnTurn(ctx, &domain.TurnEvent{
		EventBase:     domain.EventBase{Timestamp: m.now(), Type: domain.EventTurn, SessionID: s.SessionID},
		Flow:          s.ActiveFlow,
		State:         s.CurrentState,
		Channel:       ch,
		Outcome:       res.Outcome,
		MatchedOption: res.MatchedOption,
		Confidence:    res.Confidence,
	})
}
