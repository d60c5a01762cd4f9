package dsl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/praveen131106/ivr-modern/pkg/adapters/memory"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Builder manages the construction of a flow set.
type Builder struct {
	flows map[string]*FlowBuilder
	errs  []error
}

// New creates a new flow set builder.
func New() *Builder {
	return &Builder{
		flows: make(map[string]*FlowBuilder),
	}
}

// Flow creates a new flow in the set.
// If the flow already exists, it returns the existing builder.
func (b *Builder) Flow(name string) *FlowBuilder {
	if fb, ok := b.flows[name]; ok {
		return fb
	}
	fb := &FlowBuilder{
		flow: &domain.FlowDefinition{
			Name:   name,
			States: make(map[string]*domain.StateDefinition),
		},
		builder: b,
	}
	b.flows[name] = fb
	return fb
}

// Flows returns the definitions built so far, sorted by name.
func (b *Builder) Flows() ([]*domain.FlowDefinition, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid flow set: %w", errors.Join(b.errs...))
	}
	out := make([]*domain.FlowDefinition, 0, len(b.flows))
	for _, fb := range b.flows {
		out = append(out, fb.flow)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Build compiles the flow set into a memory Loader.
func (b *Builder) Build() (*memory.Loader, error) {
	flows, err := b.Flows()
	if err != nil {
		return nil, err
	}
	return memory.NewFromFlows(flows...), nil
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// FlowBuilder configures one flow.
type FlowBuilder struct {
	flow    *domain.FlowDefinition
	builder *Builder
}

// Describe sets the flow description.
func (f *FlowBuilder) Describe(text string) *FlowBuilder {
	f.flow.Description = text
	return f
}

// Initial names the state calls enter the flow in.
func (f *FlowBuilder) Initial(state string) *FlowBuilder {
	f.flow.InitialState = state
	return f
}

// Global offers an option in every non-terminal state of the flow.
func (f *FlowBuilder) Global(key, label, target string, synonyms ...string) *FlowBuilder {
	if opt, ok := f.option(key, label, target, synonyms); ok {
		f.flow.GlobalOptions = append(f.flow.GlobalOptions, opt)
	}
	return f
}

// State adds a state to the flow. The first state added becomes the initial
// state unless Initial is called.
func (f *FlowBuilder) State(id string) *StateBuilder {
	if s, ok := f.flow.States[id]; ok {
		return &StateBuilder{state: s, flow: f}
	}
	s := &domain.StateDefinition{ID: id}
	f.flow.States[id] = s
	if f.flow.InitialState == "" {
		f.flow.InitialState = id
	}
	return &StateBuilder{state: s, flow: f}
}

// Build returns the underlying definition.
func (f *FlowBuilder) Build() *domain.FlowDefinition {
	return f.flow
}

func (f *FlowBuilder) option(key, label, target string, synonyms []string) (domain.OptionDefinition, bool) {
	next, err := domain.ParseTarget(target)
	if err != nil {
		f.builder.fail("%s: option %q: %w", f.flow.Name, key, err)
		return domain.OptionDefinition{}, false
	}
	return domain.OptionDefinition{
		Key:      key,
		Label:    label,
		Synonyms: synonyms,
		Next:     next,
	}, true
}
