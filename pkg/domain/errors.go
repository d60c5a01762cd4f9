package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrFlowNotFound is returned when a flow name is not loaded.
var ErrFlowNotFound = errors.New("flow not found")

// FlowValidationError aggregates every problem found in a flow set.
type FlowValidationError struct {
	Problems []string
}

func (e *FlowValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid flows: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid flows: found %d errors:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}
