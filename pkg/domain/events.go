package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateEnter   EventType = "state_enter"
	EventStateLeave   EventType = "state_leave"
	EventTurn         EventType = "turn"
	EventFallback     EventType = "fallback"
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StateEvent represents entry into or exit from a state.
type StateEvent struct {
	EventBase
	Flow  string `json:"flow"`
	State string `json:"state"`
}

// TurnEvent describes one processed caller input.
type TurnEvent struct {
	EventBase
	Flow          string  `json:"flow"`
	State         string  `json:"state"`
	Channel       Channel `json:"channel"`
	Outcome       Outcome `json:"outcome"`
	MatchedOption string  `json:"matched_option,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// SessionEvent marks the start or end of a call.
type SessionEvent struct {
	EventBase
	Flow      string `json:"flow"`
	Exchanges int    `json:"exchanges"`
}

// LifecycleHooks defines callbacks for observability. Nil callbacks are skipped.
type LifecycleHooks struct {
	OnStateEnter   func(context.Context, *StateEvent)
	OnStateLeave   func(context.Context, *StateEvent)
	OnTurn         func(context.Context, *TurnEvent)
	OnFallback     func(context.Context, *StateEvent)
	OnSessionStart func(context.Context, *SessionEvent)
	OnSessionEnd   func(context.Context, *SessionEvent)
}

// Merge chains two hook sets so both observe every event.
func (h LifecycleHooks) Merge(o LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateEnter:   chain(h.OnStateEnter, o.OnStateEnter),
		OnStateLeave:   chain(h.OnStateLeave, o.OnStateLeave),
		OnTurn:         chain(h.OnTurn, o.OnTurn),
		OnFallback:     chain(h.OnFallback, o.OnFallback),
		OnSessionStart: chain(h.OnSessionStart, o.OnSessionStart),
		OnSessionEnd:   chain(h.OnSessionEnd, o.OnSessionEnd),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
