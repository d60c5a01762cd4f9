package ports

import "github.com/praveen131106/ivr-modern/pkg/domain"

// FlowLoader defines how the engine retrieves flow definitions.
// Loading is all-or-nothing: any malformed document fails the whole load.
type FlowLoader interface {
	LoadFlows() ([]*domain.FlowDefinition, error)
}
