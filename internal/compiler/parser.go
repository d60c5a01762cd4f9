package compiler

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/praveen131106/ivr-modern/internal/dto"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// Parser is responsible for converting raw document bytes into a FlowDefinition.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a JSON or YAML flow document. YAML is a superset of JSON,
// so a single decoder serves both. fallbackName is used when the document
// carries no name (usually the file name).
func (p *Parser) Parse(data []byte, fallbackName string) (*domain.FlowDefinition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow document: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("flow document is empty")
	}

	var doc dto.FlowDocument
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid flow document: %w", err)
	}

	if doc.Name == "" {
		doc.Name = fallbackName
	}
	return Compile(&doc)
}

// Compile converts a decoded document into the domain model.
func Compile(doc *dto.FlowDocument) (*domain.FlowDefinition, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("flow missing name")
	}

	flow := &domain.FlowDefinition{
		Name:         doc.Name,
		Description:  doc.Description,
		InitialState: doc.InitialState,
		States:       make(map[string]*domain.StateDefinition, len(doc.States)),
	}

	globals, err := compileOptions(doc.GlobalOptions)
	if err != nil {
		return nil, fmt.Errorf("flow %s: global options: %w", doc.Name, err)
	}
	flow.GlobalOptions = globals

	for id, sd := range doc.States {
		state := &domain.StateDefinition{
			ID:                id,
			Prompt:            sd.Prompt,
			Terminal:          sd.Terminal,
			Response:          sd.Response,
			InvalidMessage:    sd.InvalidMessage,
			SkipWhenCollected: sd.SkipWhenCollected,
		}
		if state.Options, err = compileOptions(sd.Options); err != nil {
			return nil, fmt.Errorf("flow %s: state %s: %w", doc.Name, id, err)
		}
		if sd.FreeText != nil {
			next, err := domain.ParseTarget(sd.FreeText.Next)
			if err != nil {
				return nil, fmt.Errorf("flow %s: state %s: free text: %w", doc.Name, id, err)
			}
			state.FreeText = &domain.FreeTextField{
				Field:   sd.FreeText.Field,
				Next:    next,
				Pattern: sd.FreeText.Pattern,
				Hint:    sd.FreeText.Hint,
			}
		}
		flow.States[id] = state
	}

	return flow, nil
}

func compileOptions(docs []dto.OptionDocument) ([]domain.OptionDefinition, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]domain.OptionDefinition, 0, len(docs))
	for _, od := range docs {
		next, err := domain.ParseTarget(od.Next)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", od.Key, err)
		}
		out = append(out, domain.OptionDefinition{
			Key:            od.Key,
			Label:          od.Label,
			Synonyms:       od.Synonyms,
			Next:           next,
			RequiredFields: od.RequiredFields,
			Sets:           od.Sets,
			Clears:         od.Clears,
		})
	}
	return out, nil
}
