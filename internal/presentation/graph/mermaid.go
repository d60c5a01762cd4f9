package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// endNode is the shared node every "end" target points to.
const endNode = "call_end"

// GraphOverlay contains dynamic session data to visualize on the graph.
// States are addressed as "flow/state".
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
}

// OverlayFor builds the overlay of a live session from its transcript.
func OverlayFor(s *domain.SessionState) *GraphOverlay {
	overlay := &GraphOverlay{CurrentState: s.ActiveFlow + "/" + s.CurrentState}
	for _, e := range s.Transcript {
		overlay.VisitedStates = append(overlay.VisitedStates, e.Flow+"/"+e.State)
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of every flow, one subgraph per flow.
// It applies semantic styling:
// - Initial state: ((Circle))
// - Free-text capture: [/Parallelogram/]
// - Terminal: [[Subroutine]]
// - Default: [Rectangle]
// Cross-flow jumps are dotted. Overlay styles (Visited/Current) are applied if provided.
func GenerateMermaid(flows []*domain.FlowDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	usesEnd := false
	for _, f := range flows {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("flow_"+f.Name), f.Name)
		ids := make([]string, 0, len(f.States))
		for id := range f.States {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			st := f.States[id]
			opener, closer := "[", "]"
			switch {
			case id == f.InitialState:
				opener, closer = "((", "))"
			case st.Terminal:
				opener, closer = "[[", "]]"
			case st.FreeText != nil:
				opener, closer = "[/", "/]"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", nodeID(f.Name, id), opener, id, closer)
		}
		sb.WriteString("    end\n")

		for _, id := range ids {
			st := f.States[id]
			from := nodeID(f.Name, id)
			for _, opt := range st.Options {
				usesEnd = writeEdge(&sb, from, f, opt.Next, opt.Key) || usesEnd
			}
			if st.FreeText != nil {
				usesEnd = writeEdge(&sb, from, f, st.FreeText.Next, st.FreeText.Field) || usesEnd
			}
		}
	}
	if usesEnd {
		fmt.Fprintf(&sb, "    %s(((\"end\")))\n", endNode)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, ref := range overlay.VisitedStates {
			safeID := refID(ref)
			if safeID != "" && !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", refID(overlay.CurrentState))
		}
	}

	return sb.String()
}

// writeEdge reports whether the edge points to the end node.
func writeEdge(sb *strings.Builder, from string, f *domain.FlowDefinition, target domain.Target, label string) bool {
	label = strings.ReplaceAll(label, "\"", "'")
	switch target.Kind {
	case domain.TargetEnd:
		fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, label, endNode)
		return true
	case domain.TargetFlow:
		// Entering a flow at its initial state points at the flow subgraph.
		to := sanitizeMermaidID("flow_" + target.Flow)
		if target.State != "" {
			to = nodeID(target.Flow, target.State)
		}
		fmt.Fprintf(sb, "    %s -. \"%s\" .-> %s\n", from, label, to)
	default:
		fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, label, nodeID(f.Name, target.State))
	}
	return false
}

func nodeID(flow, state string) string {
	return sanitizeMermaidID(flow + "__" + state)
}

func refID(ref string) string {
	flow, state, ok := strings.Cut(ref, "/")
	if !ok || flow == "" || state == "" {
		return ""
	}
	if state == domain.EndState {
		return endNode
	}
	return nodeID(flow, state)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
