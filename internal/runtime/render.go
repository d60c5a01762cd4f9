package runtime

import (
	"fmt"
	"strings"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

const defaultInvalidMessage = "I'm sorry, I didn't quite catch that."

var greetingReplies = map[domain.GreetingKind]string{
	domain.GreetingHello:     "Hello! I'm here to help with your train enquiry.",
	domain.GreetingHowAreYou: "I'm doing wonderful, thank you for asking! I'm ready to help with your train enquiry.",
	domain.GreetingThanks:    "You're very welcome!",
}

var fieldLabels = map[string]string{
	"train_number":        "train number",
	"pnr":                 "PNR",
	"class":               "class",
	"source_station":      "from",
	"destination_station": "to",
	"travel_date":         "travel date",
}

// renderEntry is what the caller hears on arriving at a state: the response, then the prompt.
func (m *Machine) renderEntry(s *domain.SessionState, flow *domain.FlowDefinition, st *domain.StateDefinition) string {
	var response string
	if st.Response != "" && m.responses != nil {
		if text, ok := m.responses.Respond(st.Response, s.Data()); ok {
			response = text
		} else {
			m.logger.Warn("Unknown response", "response", st.Response, "state", stateKey(flow.Name, st.ID))
		}
	}
	return joinMessage(response, m.renderPrompt(s, flow, st))
}

// renderPrompt executes the state's prompt template over the collected data.
func (m *Machine) renderPrompt(s *domain.SessionState, flow *domain.FlowDefinition, st *domain.StateDefinition) string {
	tmpl, ok := m.prompts[stateKey(flow.Name, st.ID)]
	if !ok {
		return st.Prompt
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, s.Data()); err != nil {
		m.logger.Warn("Failed to render prompt", "state", stateKey(flow.Name, st.ID), "err", err)
		return st.Prompt
	}
	return b.String()
}

// helpMessage restates what the caller can do after a miss.
func (m *Machine) helpMessage(s *domain.SessionState, flow *domain.FlowDefinition, st *domain.StateDefinition, options []domain.OptionDefinition) string {
	parts := []string{defaultInvalidMessage}
	if st.InvalidMessage != "" {
		parts[0] = st.InvalidMessage
	}
	if st.FreeText != nil && st.FreeText.Hint != "" {
		parts = append(parts, st.FreeText.Hint)
	}
	if len(options) > 0 {
		choices := make([]string, 0, len(options))
		for _, opt := range options {
			choices = append(choices, fmt.Sprintf("%s for %s", keyName(opt.Key), opt.Label))
		}
		parts = append(parts, "You can press "+strings.Join(choices, ", ")+".")
	}
	if s.NoMatchCount >= m.settings.NoMatchLimit {
		parts = append(parts, "If I still can't understand you, I'll transfer your call.")
	} else {
		parts = append(parts, "Please try again.")
	}
	return strings.Join(parts, " ")
}

// acknowledge confirms captured fields, e.g. "Got it: train number 12345."
func acknowledge(fields []string, entities map[string]domain.Entity) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		label, ok := fieldLabels[f]
		if !ok {
			label = strings.ReplaceAll(f, "_", " ")
		}
		parts = append(parts, label+" "+entities[f].Value)
	}
	return "Got it: " + strings.Join(parts, ", ") + "."
}

func keyName(key string) string {
	switch key {
	case "*":
		return "star"
	case "#":
		return "hash"
	}
	return key
}

func joinMessage(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
