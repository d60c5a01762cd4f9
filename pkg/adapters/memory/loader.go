package memory

import (
	"fmt"
	"sort"

	"github.com/praveen131106/ivr-modern/internal/compiler"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Loader implements ports.FlowLoader from documents or definitions held in memory.
type Loader struct {
	docs  map[string][]byte
	flows []*domain.FlowDefinition
}

// NewLoader creates a loader over raw flow documents keyed by flow name.
func NewLoader(docs map[string]string) *Loader {
	raw := make(map[string][]byte, len(docs))
	for k, v := range docs {
		raw[k] = []byte(v)
	}
	return &Loader{docs: raw}
}

// NewFromFlows creates a loader serving already built definitions.
// This improves DX for tests.
func NewFromFlows(flows ...*domain.FlowDefinition) *Loader {
	return &Loader{flows: flows}
}

// LoadFlows parses every document, sorted by name.
func (l *Loader) LoadFlows() ([]*domain.FlowDefinition, error) {
	if l.flows != nil {
		out := append([]*domain.FlowDefinition(nil), l.flows...)
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	}

	names := make([]string, 0, len(l.docs))
	for k := range l.docs {
		names = append(names, k)
	}
	sort.Strings(names)

	parser := compiler.NewParser()
	out := make([]*domain.FlowDefinition, 0, len(names))
	for _, name := range names {
		flow, err := parser.Parse(l.docs[name], name)
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", name, err)
		}
		out = append(out, flow)
	}
	return out, nil
}
