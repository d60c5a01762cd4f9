package runtime

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// epsilon absorbs float rounding when comparing a confidence to a threshold.
const epsilon = 1e-9

// Field sources recorded alongside collected values.
const (
	sourceOption   = "option"
	sourceFreeText = "free_text"
)

// transition leaves the current state and enters target. Accepted transitions reset the miss counter.
func (m *Machine) transition(ctx context.Context, s *domain.SessionState, target domain.Target) (string, error) {
	m.emitState(ctx, domain.EventStateLeave, s)
	s.NoMatchCount = 0
	return m.enter(ctx, s, target)
}

// enter moves the session to target and renders what the caller hears there.
// Free-text states whose field is already known are passed through.
func (m *Machine) enter(ctx context.Context, s *domain.SessionState, target domain.Target) (string, error) {
	for hop := 0; hop < maxHops; hop++ {
		if target.Kind == domain.TargetEnd {
			s.CurrentState = domain.EndState
			s.Terminated = true
			m.emitState(ctx, domain.EventStateEnter, s)
			return m.settings.Goodbye, nil
		}

		flowName, stateID := s.ActiveFlow, target.State
		if target.Kind == domain.TargetFlow {
			flowName = target.Flow
		}
		flow, ok := m.flows[flowName]
		if !ok {
			return "", fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowName)
		}
		if stateID == "" {
			stateID = flow.InitialState
		}
		st, ok := flow.State(stateID)
		if !ok {
			return "", fmt.Errorf("unknown state %s in flow %s", stateID, flowName)
		}

		s.ActiveFlow, s.CurrentState = flow.Name, st.ID

		if st.SkipWhenCollected && st.FreeText != nil {
			if _, known := s.CollectedData[st.FreeText.Field]; known {
				m.logger.Debug("Skipping collected state", "session_id", s.SessionID, "state", stateKey(flow.Name, st.ID))
				target = st.FreeText.Next
				continue
			}
		}

		if st.Terminal {
			s.Terminated = true
		}
		m.emitState(ctx, domain.EventStateEnter, s)
		return m.renderEntry(s, flow, st), nil
	}
	return "", fmt.Errorf("session %s: more than %d pass-through states from %s", s.SessionID, maxHops, stateKey(s.ActiveFlow, s.CurrentState))
}

// applyOption records the effects of choosing opt: cleared fields go first,
// then the utterance's entities, then the option's fixed values.
func (m *Machine) applyOption(s *domain.SessionState, opt domain.OptionDefinition, entities map[string]domain.Entity) {
	for _, f := range opt.Clears {
		delete(s.CollectedData, f)
	}
	m.mergeEntities(s, entities)
	keys := make([]string, 0, len(opt.Sets))
	for k := range opt.Sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Collect(k, domain.Field{Value: opt.Sets[k], Confidence: 1, Turn: s.Turn, Source: sourceOption}, m.settings.HighConfidence)
	}
}

// mergeEntities stores recognised entities and returns the names of the fields that changed.
// Restating a value that is already known captures nothing.
func (m *Machine) mergeEntities(s *domain.SessionState, entities map[string]domain.Entity) []string {
	var captured []string
	for name, e := range entities {
		f := domain.Field{Value: e.Value, Confidence: e.Confidence, Turn: s.Turn, Source: e.Recognizer}
		if s.Collect(name, f, m.settings.HighConfidence) {
			captured = append(captured, name)
		}
	}
	sort.Strings(captured)
	return captured
}

// freeTextValue picks the value to capture: the recognised entity for the field, else the trimmed input.
// A non-nil pattern must match the value.
func freeTextValue(ft *domain.FreeTextField, pattern *regexp.Regexp, raw string, entities map[string]domain.Entity) (string, bool) {
	value := strings.TrimSpace(raw)
	if e, ok := entities[ft.Field]; ok {
		value = e.Value
	}
	if value == "" {
		return "", false
	}
	if pattern != nil && !pattern.MatchString(value) {
		return "", false
	}
	return value, true
}
