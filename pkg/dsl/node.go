package dsl

import "github.com/praveen131106/ivr-modern/pkg/domain"

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	state *domain.StateDefinition
	flow  *FlowBuilder
}

// Prompt sets what the IVR says on entering the state.
func (s *StateBuilder) Prompt(text string) *StateBuilder {
	s.state.Prompt = text
	return s
}

// Response names the responder whose output precedes the prompt.
func (s *StateBuilder) Response(name string) *StateBuilder {
	s.state.Response = name
	return s
}

// Invalid overrides the help message given after an unrecognised input.
func (s *StateBuilder) Invalid(text string) *StateBuilder {
	s.state.InvalidMessage = text
	return s
}

// Option adds a menu choice bound to a keypad key. target uses the document
// syntax: "state", "flow:name", "flow:name/state" or "end".
func (s *StateBuilder) Option(key, label, target string, synonyms ...string) *StateBuilder {
	if opt, ok := s.flow.option(key, label, target, synonyms); ok {
		s.state.Options = append(s.state.Options, opt)
	}
	return s
}

// Sets stores a fixed value when the most recently added option is chosen.
func (s *StateBuilder) Sets(field, value string) *StateBuilder {
	if opt := s.last(); opt != nil {
		if opt.Sets == nil {
			opt.Sets = make(map[string]string)
		}
		opt.Sets[field] = value
	}
	return s
}

// Clears drops collected fields when the most recently added option is chosen.
func (s *StateBuilder) Clears(fields ...string) *StateBuilder {
	if opt := s.last(); opt != nil {
		opt.Clears = append(opt.Clears, fields...)
	}
	return s
}

// Requires lists the fields the most recently added option expects.
func (s *StateBuilder) Requires(fields ...string) *StateBuilder {
	if opt := s.last(); opt != nil {
		opt.RequiredFields = append(opt.RequiredFields, fields...)
	}
	return s
}

// Capture makes the state store the caller's utterance into field and move on to target.
func (s *StateBuilder) Capture(field, target string) *StateBuilder {
	next, err := domain.ParseTarget(target)
	if err != nil {
		s.flow.builder.fail("%s/%s: capture: %w", s.flow.flow.Name, s.state.ID, err)
		return s
	}
	s.state.FreeText = &domain.FreeTextField{Field: field, Next: next}
	return s
}

// Pattern restricts the captured value. The hint is spoken when it does not match.
func (s *StateBuilder) Pattern(pattern, hint string) *StateBuilder {
	if s.state.FreeText == nil {
		s.flow.builder.fail("%s/%s: pattern without capture", s.flow.flow.Name, s.state.ID)
		return s
	}
	s.state.FreeText.Pattern = pattern
	s.state.FreeText.Hint = hint
	return s
}

// SkipWhenCollected passes through the capture when its field is already known.
func (s *StateBuilder) SkipWhenCollected() *StateBuilder {
	s.state.SkipWhenCollected = true
	return s
}

// Terminal marks the state as the end of the call.
func (s *StateBuilder) Terminal() *StateBuilder {
	s.state.Terminal = true
	s.state.Options = nil
	return s
}

// State continues with another state of the same flow.
func (s *StateBuilder) State(id string) *StateBuilder {
	return s.flow.State(id)
}

// Build returns the underlying definition.
func (s *StateBuilder) Build() *domain.StateDefinition {
	return s.state
}

func (s *StateBuilder) last() *domain.OptionDefinition {
	if len(s.state.Options) == 0 {
		s.flow.builder.fail("%s/%s: option modifier before any option", s.flow.flow.Name, s.state.ID)
		return nil
	}
	return &s.state.Options[len(s.state.Options)-1]
}
