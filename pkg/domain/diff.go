package domain

// SessionDiff represents the changes between two session snapshots.
// It is serialized to JSON for partial updates on streaming clients.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Flow  *string `json:"flow,omitempty"`
	State *string `json:"state,omitempty"`

	// Data contains only changed, added or deleted fields.
	// For deletions, the key is present with a nil value.
	Data map[string]any `json:"data,omitempty"`

	// Transcript holds entries appended since the old snapshot.
	Transcript []TranscriptEntry `json:"transcript,omitempty"`

	Terminated *bool `json:"terminated,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *SessionState) *SessionDiff {
	if newState == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: newState.SessionID}

	if oldState == nil || oldState.ActiveFlow != newState.ActiveFlow {
		diff.Flow = &newState.ActiveFlow
	}
	if oldState == nil || oldState.CurrentState != newState.CurrentState {
		diff.State = &newState.CurrentState
	}
	if oldState == nil {
		if newState.Terminated {
			diff.Terminated = &newState.Terminated
		}
	} else if oldState.Terminated != newState.Terminated {
		diff.Terminated = &newState.Terminated
	}

	diff.Data = diffData(oldState, newState)
	diff.Transcript = diffTranscript(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffData(old, new *SessionState) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, f := range new.CollectedData {
			delta[k] = f.Value
		}
	} else {
		for k, f := range new.CollectedData {
			if prev, ok := old.CollectedData[k]; !ok || prev.Value != f.Value {
				delta[k] = f.Value
			}
		}
		for k := range old.CollectedData {
			if _, ok := new.CollectedData[k]; !ok {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffTranscript relies on the transcript being append-only.
func diffTranscript(old, new *SessionState) []TranscriptEntry {
	if old == nil {
		if len(new.Transcript) == 0 {
			return nil
		}
		return new.Transcript
	}
	if len(new.Transcript) > len(old.Transcript) {
		return new.Transcript[len(old.Transcript):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.Flow == nil &&
		d.State == nil &&
		d.Terminated == nil &&
		len(d.Data) == 0 &&
		len(d.Transcript) == 0
}
