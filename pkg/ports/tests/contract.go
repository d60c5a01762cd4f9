package tests

import (
	"testing"

	"github.com/praveen131106/ivr-modern/pkg/ports"
)

// FlowLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.FlowLoader.
// wantFlows lists the flow names the loader is expected to produce.
func FlowLoaderContractTest(t *testing.T, loader ports.FlowLoader, wantFlows []string) {
	t.Helper()

	flows, err := loader.LoadFlows()
	if err != nil {
		t.Fatalf("unexpected error loading flows: %v", err)
	}

	t.Run("AllFlowsPresent", func(t *testing.T) {
		if len(flows) != len(wantFlows) {
			t.Errorf("expected %d flows, got %d", len(wantFlows), len(flows))
		}
		lookup := make(map[string]bool)
		for _, f := range flows {
			lookup[f.Name] = true
		}
		for _, name := range wantFlows {
			if !lookup[name] {
				t.Errorf("expected flow %s not found", name)
			}
		}
	})

	t.Run("FlowsAreWellFormed", func(t *testing.T) {
		for _, f := range flows {
			if f.InitialState == "" {
				t.Errorf("flow %s has no initial state", f.Name)
			}
			if len(f.States) == 0 {
				t.Errorf("flow %s has no states", f.Name)
			}
			for id, s := range f.States {
				if s.ID != id {
					t.Errorf("flow %s: state keyed %q carries id %q", f.Name, id, s.ID)
				}
			}
		}
	})

	t.Run("DeterministicOrder", func(t *testing.T) {
		again, err := loader.LoadFlows()
		if err != nil {
			t.Fatalf("second load failed: %v", err)
		}
		for i := range flows {
			if flows[i].Name != again[i].Name {
				t.Errorf("order changed between loads at %d: %s vs %s", i, flows[i].Name, again[i].Name)
			}
		}
	})
}
