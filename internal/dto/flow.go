// Package dto holds the wire shapes of flow documents.
package dto

// FlowDocument is the on-disk representation of a flow.
// It uses "mapstructure" tags so the same shape decodes from JSON and YAML.
type FlowDocument struct {
	Name          string                   `json:"name" mapstructure:"name"`
	Description   string                   `json:"description,omitempty" mapstructure:"description"`
	InitialState  string                   `json:"initial_state" mapstructure:"initial_state"`
	GlobalOptions []OptionDocument         `json:"global_options,omitempty" mapstructure:"global_options"`
	States        map[string]StateDocument `json:"states" mapstructure:"states"`
}

// StateDocument describes one menu state.
type StateDocument struct {
	Prompt            string            `json:"prompt" mapstructure:"prompt"`
	Options           []OptionDocument  `json:"options,omitempty" mapstructure:"options"`
	FreeText          *FreeTextDocument `json:"expects_free_text,omitempty" mapstructure:"expects_free_text"`
	Terminal          bool              `json:"is_terminal,omitempty" mapstructure:"is_terminal"`
	Response          string            `json:"response,omitempty" mapstructure:"response"`
	InvalidMessage    string            `json:"invalid_input_message,omitempty" mapstructure:"invalid_input_message"`
	SkipWhenCollected bool              `json:"skip_when_collected,omitempty" mapstructure:"skip_when_collected"`
}

// OptionDocument describes one selectable option.
type OptionDocument struct {
	Key            string            `json:"key" mapstructure:"key"`
	Label          string            `json:"label" mapstructure:"label"`
	Synonyms       []string          `json:"synonyms,omitempty" mapstructure:"synonyms"`
	Next           string            `json:"next_state" mapstructure:"next_state"`
	RequiredFields []string          `json:"required_fields,omitempty" mapstructure:"required_fields"`
	Sets           map[string]string `json:"sets,omitempty" mapstructure:"sets"`
	Clears         []string          `json:"clears,omitempty" mapstructure:"clears"`
}

// FreeTextDocument configures free-text capture.
type FreeTextDocument struct {
	Field   string `json:"field" mapstructure:"field"`
	Next    string `json:"next_state" mapstructure:"next_state"`
	Pattern string `json:"pattern,omitempty" mapstructure:"pattern"`
	Hint    string `json:"hint,omitempty" mapstructure:"hint"`
}
