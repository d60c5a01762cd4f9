package domain

import (
	"fmt"
	"strings"
)

const (
	// EndState is the reserved target that finishes the call.
	EndState = "end"
	// FlowPrefix marks a target that jumps into another flow.
	FlowPrefix = "flow:"
)

// TargetKind discriminates the Target variant.
type TargetKind int

const (
	// TargetState moves to a state of the active flow.
	TargetState TargetKind = iota
	// TargetFlow switches the active flow. State is optional and defaults to the flow's initial state.
	TargetFlow
	// TargetEnd terminates the session.
	TargetEnd
)

// Target is the destination of a transition.
type Target struct {
	Kind  TargetKind
	Flow  string
	State string
}

// StateTarget builds a same-flow target.
func StateTarget(id string) Target { return Target{Kind: TargetState, State: id} }

// FlowTarget builds a cross-flow target entering the flow's initial state.
func FlowTarget(name string) Target { return Target{Kind: TargetFlow, Flow: name} }

// End is the terminating target.
var End = Target{Kind: TargetEnd}

// ParseTarget decodes the document syntax: "state", "flow:name", "flow:name/state" or "end".
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Target{}, fmt.Errorf("empty target")
	case raw == EndState:
		return End, nil
	case strings.HasPrefix(raw, FlowPrefix):
		rest := strings.TrimPrefix(raw, FlowPrefix)
		flow, state, _ := strings.Cut(rest, "/")
		if flow == "" {
			return Target{}, fmt.Errorf("target %q has no flow name", raw)
		}
		if strings.Contains(rest, "/") && state == "" {
			return Target{}, fmt.Errorf("target %q has an empty state", raw)
		}
		return Target{Kind: TargetFlow, Flow: flow, State: state}, nil
	default:
		return StateTarget(raw), nil
	}
}

// String renders the target back into document syntax.
func (t Target) String() string {
	switch t.Kind {
	case TargetEnd:
		return EndState
	case TargetFlow:
		if t.State != "" {
			return FlowPrefix + t.Flow + "/" + t.State
		}
		return FlowPrefix + t.Flow
	default:
		return t.State
	}
}

// OptionDefinition is one selectable choice of a state.
type OptionDefinition struct {
	// Key is the keypad symbol ("1", "*", "0").
	Key   string
	Label string
	// Synonyms are the phrases recognised for speech input, canonical phrase first.
	Synonyms []string
	Next     Target
	// RequiredFields are expected to be collected before the option makes sense.
	// They steer entity extraction priority.
	RequiredFields []string
	// Sets stores fixed values when the option is chosen.
	Sets map[string]string
	// Clears removes collected fields when the option is chosen.
	Clears []string
}

// FreeTextField makes a state capture the raw utterance into a data field.
type FreeTextField struct {
	Field string
	Next  Target
	// Pattern, when set, is a regular expression the captured value must match.
	Pattern string
	// Hint is appended to the help message when the capture is rejected.
	Hint string
}

// StateDefinition is a single menu state.
type StateDefinition struct {
	ID     string
	Prompt string
	// Options are ordered; declaration order breaks ties during matching.
	Options  []OptionDefinition
	FreeText *FreeTextField
	Terminal bool
	// Response names a responder whose output precedes the prompt on entry.
	Response       string
	InvalidMessage string
	// SkipWhenCollected passes straight through a free-text state whose field is already known.
	SkipWhenCollected bool
}

// Option returns the option bound to a keypad key.
func (s *StateDefinition) Option(key string) (OptionDefinition, bool) {
	for _, opt := range s.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return OptionDefinition{}, false
}

// FlowDefinition is an immutable menu tree loaded from a document.
type FlowDefinition struct {
	Name         string
	Description  string
	InitialState string
	States       map[string]*StateDefinition
	// GlobalOptions are offered after each state's own options.
	GlobalOptions []OptionDefinition
}

// State looks up a state by id.
func (f *FlowDefinition) State(id string) (*StateDefinition, bool) {
	s, ok := f.States[id]
	return s, ok
}

// OptionsFor returns the state's options followed by the flow's global options.
// Globals whose key is already taken by the state are skipped.
func (f *FlowDefinition) OptionsFor(s *StateDefinition) []OptionDefinition {
	if len(f.GlobalOptions) == 0 || s.Terminal {
		return s.Options
	}
	out := make([]OptionDefinition, 0, len(s.Options)+len(f.GlobalOptions))
	out = append(out, s.Options...)
	for _, g := range f.GlobalOptions {
		if _, taken := s.Option(g.Key); taken {
			continue
		}
		out = append(out, g)
	}
	return out
}

// OptionCount is the number of options declared across all states.
func (f *FlowDefinition) OptionCount() int {
	n := len(f.GlobalOptions)
	for _, s := range f.States {
		n += len(s.Options)
	}
	return n
}

// FlowInfo is the listing view of a flow.
type FlowInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	InitialState string   `json:"initial_state"`
	States       []string `json:"states"`
	OptionCount  int      `json:"option_count"`
}

// MenuOption is the caller-facing view of an option.
type MenuOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}
