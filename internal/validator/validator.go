// Package validator checks a loaded flow set before any call is served.
package validator

import (
	"fmt"
	"regexp"
	"sort"
	"text/template"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Options describes what the flow set is validated against.
type Options struct {
	// MainFlow is the flow calls start in.
	MainFlow string
	// Responses lists the known response names. Nil skips the check.
	Responses []string
	// Fallback is the target used after repeated misses. Empty skips the check.
	Fallback string
}

type checker struct {
	flows     map[string]*domain.FlowDefinition
	responses map[string]bool
	problems  []string
	// entries holds, per flow, the states other flows jump into by name.
	entries map[string][]string
}

func (c *checker) addf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

// ValidateFlows checks targets, keys, templates, patterns, responses and reachability
// of every flow. All problems are reported together in a *domain.FlowValidationError.
func ValidateFlows(flows []*domain.FlowDefinition, opts Options) error {
	c := &checker{
		flows:   make(map[string]*domain.FlowDefinition, len(flows)),
		entries: make(map[string][]string),
	}
	if opts.Responses != nil {
		c.responses = make(map[string]bool, len(opts.Responses))
		for _, r := range opts.Responses {
			c.responses[r] = true
		}
	}

	for _, f := range flows {
		if _, dup := c.flows[f.Name]; dup {
			c.addf("flow %s: defined more than once", f.Name)
			continue
		}
		c.flows[f.Name] = f
	}

	if _, ok := c.flows[opts.MainFlow]; !ok {
		c.addf("main flow %q not found", opts.MainFlow)
	}
	if opts.Fallback != "" {
		target, err := domain.ParseTarget(opts.Fallback)
		if err != nil {
			c.addf("fallback: %v", err)
		} else {
			c.checkTarget("fallback", "", target)
		}
	}

	for _, name := range c.names() {
		c.checkFlow(c.flows[name])
	}
	for _, name := range c.names() {
		c.checkReachability(c.flows[name])
	}

	if len(c.problems) > 0 {
		return &domain.FlowValidationError{Problems: c.problems}
	}
	return nil
}

func (c *checker) names() []string {
	names := make([]string, 0, len(c.flows))
	for n := range c.flows {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *checker) checkFlow(f *domain.FlowDefinition) {
	if _, ok := f.State(f.InitialState); !ok {
		c.addf("flow %s: initial state %q not found", f.Name, f.InitialState)
	}
	c.checkOptions(f.Name, "global options", f.Name, f.GlobalOptions)

	for _, id := range sortedStates(f) {
		st := f.States[id]
		where := f.Name + "/" + id

		c.checkOptions(where, "options", f.Name, st.Options)

		if st.FreeText != nil {
			if st.FreeText.Field == "" {
				c.addf("%s: free text has no field", where)
			}
			c.checkTarget(where, f.Name, st.FreeText.Next)
			if st.FreeText.Pattern != "" {
				if _, err := regexp.Compile(st.FreeText.Pattern); err != nil {
					c.addf("%s: invalid pattern: %v", where, err)
				}
			}
		} else if st.SkipWhenCollected {
			c.addf("%s: skip_when_collected needs a free text field", where)
		}

		if !st.Terminal && st.FreeText == nil && len(f.OptionsFor(st)) == 0 {
			c.addf("%s: dead end (no options, no free text, not terminal)", where)
		}
		if st.Prompt == "" && st.Response == "" {
			c.addf("%s: empty prompt", where)
		}
		if _, err := template.New(where).Parse(st.Prompt); err != nil {
			c.addf("%s: invalid prompt template: %v", where, err)
		}
		if st.Response != "" && c.responses != nil && !c.responses[st.Response] {
			c.addf("%s: unknown response %q", where, st.Response)
		}
	}
}

func (c *checker) checkOptions(where, what, flow string, opts []domain.OptionDefinition) {
	seen := make(map[string]bool, len(opts))
	for _, opt := range opts {
		if opt.Key == "" {
			c.addf("%s: %s: option %q has an empty key", where, what, opt.Label)
			continue
		}
		if seen[opt.Key] {
			c.addf("%s: %s: duplicate key %q", where, what, opt.Key)
		}
		seen[opt.Key] = true
		c.checkTarget(where, flow, opt.Next)
	}
}

// checkTarget resolves target relative to flow.
func (c *checker) checkTarget(where, flow string, target domain.Target) {
	switch target.Kind {
	case domain.TargetEnd:
	case domain.TargetFlow:
		f, ok := c.flows[target.Flow]
		if !ok {
			c.addf("%s: target %s: flow %q not found", where, target, target.Flow)
			return
		}
		if target.State != "" {
			if _, ok := f.State(target.State); !ok {
				c.addf("%s: target %s: state %q not found in flow %s", where, target, target.State, target.Flow)
				return
			}
			c.entries[target.Flow] = append(c.entries[target.Flow], target.State)
		}
	default:
		f, ok := c.flows[flow]
		if !ok {
			c.addf("%s: target %s has no flow to resolve in", where, target)
			return
		}
		if _, ok := f.State(target.State); !ok {
			c.addf("%s: target %q not found", where, target.State)
		}
	}
}

// checkReachability walks same-flow edges from the initial state and any named entry points.
func (c *checker) checkReachability(f *domain.FlowDefinition) {
	visited := make(map[string]bool)
	queue := append([]string{f.InitialState}, c.entries[f.Name]...)

	follow := func(t domain.Target) {
		if t.Kind == domain.TargetState && !visited[t.State] {
			queue = append(queue, t.State)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		st, ok := f.State(id)
		if !ok {
			continue
		}
		visited[id] = true
		for _, opt := range f.OptionsFor(st) {
			follow(opt.Next)
		}
		if st.FreeText != nil {
			follow(st.FreeText.Next)
		}
	}

	for _, id := range sortedStates(f) {
		if !visited[id] {
			c.addf("%s/%s: unreachable from %s", f.Name, id, f.InitialState)
		}
	}
}

func sortedStates(f *domain.FlowDefinition) []string {
	ids := make([]string, 0, len(f.States))
	for id := range f.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
