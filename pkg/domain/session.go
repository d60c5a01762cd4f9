package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel is how the caller produced an input.
type Channel string

const (
	ChannelKeypad Channel = "keypad"
	ChannelSpeech Channel = "speech"
)

// ParseChannel validates a channel name. Empty means speech.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelKeypad:
		return ChannelKeypad, nil
	case ChannelSpeech, "":
		return ChannelSpeech, nil
	}
	return "", fmt.Errorf("unknown input channel %q", s)
}

// ResolveChannel is ParseChannel for caller-facing surfaces: when no channel is
// named, a single key press is taken as keypad input.
func ResolveChannel(name, input string) (Channel, error) {
	if name == "" {
		if in := strings.TrimSpace(input); len(in) == 1 && strings.ContainsAny(in, "0123456789*#") {
			return ChannelKeypad, nil
		}
	}
	return ParseChannel(name)
}

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerSystem Speaker = "system"
)

// TranscriptEntry is one line of the call history.
type TranscriptEntry struct {
	Turn      int       `json:"turn"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Channel   Channel   `json:"channel,omitempty"`
	Flow      string    `json:"flow"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// Field is a collected value with the confidence it was captured at.
type Field struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Turn       int     `json:"turn"`
	Source     string  `json:"source,omitempty"`
}

// SessionState is the snapshot of one call.
type SessionState struct {
	SessionID     string            `json:"session_id"`
	ActiveFlow    string            `json:"active_flow"`
	CurrentState  string            `json:"current_state"`
	CollectedData map[string]Field  `json:"collected_data"`
	Transcript    []TranscriptEntry `json:"transcript"`
	// NoMatchCount counts consecutive unrecognised turns in CurrentState.
	NoMatchCount   int       `json:"no_match_count"`
	Turn           int       `json:"turn"`
	Terminated     bool      `json:"terminated"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// NewSession creates a session positioned at the given flow and state.
func NewSession(id, flow, state string, now time.Time) *SessionState {
	return &SessionState{
		SessionID:      id,
		ActiveFlow:     flow,
		CurrentState:   state,
		CollectedData:  make(map[string]Field),
		StartedAt:      now,
		LastActivityAt: now,
	}
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	c := *s
	c.CollectedData = make(map[string]Field, len(s.CollectedData))
	for k, v := range s.CollectedData {
		c.CollectedData[k] = v
	}
	c.Transcript = append([]TranscriptEntry(nil), s.Transcript...)
	return &c
}

// Data flattens collected fields to their values.
func (s *SessionState) Data() map[string]string {
	out := make(map[string]string, len(s.CollectedData))
	for k, f := range s.CollectedData {
		out[k] = f.Value
	}
	return out
}

// Collect stores a value unless a more confident one is already held.
// A value at or above highConfidence always replaces. It reports whether the field changed.
func (s *SessionState) Collect(name string, f Field, highConfidence float64) bool {
	if s.CollectedData == nil {
		s.CollectedData = make(map[string]Field)
	}
	cur, ok := s.CollectedData[name]
	if ok && f.Confidence < cur.Confidence && f.Confidence < highConfidence {
		return false
	}
	s.CollectedData[name] = f
	return !ok || cur.Value != f.Value
}

// Record appends a transcript entry at the current position.
func (s *SessionState) Record(speaker Speaker, text string, ch Channel, now time.Time) {
	s.Transcript = append(s.Transcript, TranscriptEntry{
		Turn:      s.Turn,
		Speaker:   speaker,
		Text:      text,
		Channel:   ch,
		Flow:      s.ActiveFlow,
		State:     s.CurrentState,
		Timestamp: now,
	})
	s.LastActivityAt = now
}

// Exchanges counts caller turns in the transcript.
func (s *SessionState) Exchanges() int {
	n := 0
	for _, e := range s.Transcript {
		if e.Speaker == SpeakerCaller {
			n++
		}
	}
	return n
}

// Outcome classifies how a turn was resolved.
type Outcome string

const (
	OutcomeKeypad     Outcome = "keypad"
	OutcomeMatched    Outcome = "matched"
	OutcomeGreeting   Outcome = "greeting"
	OutcomeFreeText   Outcome = "free_text"
	OutcomeEntities   Outcome = "entities"
	OutcomeNoMatch    Outcome = "no_match"
	OutcomeFallback   Outcome = "fallback"
	OutcomeTerminated Outcome = "terminated"
)

// TurnResult is what the caller hears after a turn.
type TurnResult struct {
	SessionID     string       `json:"session_id"`
	Message       string       `json:"message"`
	Options       []MenuOption `json:"options"`
	Flow          string       `json:"flow"`
	State         string       `json:"state"`
	Terminal      bool         `json:"is_terminal"`
	Outcome       Outcome      `json:"outcome,omitempty"`
	MatchedOption string       `json:"matched_option,omitempty"`
	Confidence    float64      `json:"confidence,omitempty"`
}

// Summary is the record returned when a call ends.
type Summary struct {
	SessionID      string            `json:"session_id"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        time.Time         `json:"ended_at"`
	Duration       time.Duration     `json:"duration"`
	TotalExchanges int               `json:"total_exchanges"`
	Transcript     []TranscriptEntry `json:"transcript"`
	CollectedData  map[string]string `json:"collected_data"`
	FinalFlow      string            `json:"final_flow"`
	FinalState     string            `json:"final_state"`
	Terminated     bool              `json:"terminated"`
}

// Summarize builds the end-of-call record.
func Summarize(s *SessionState, endedAt time.Time) *Summary {
	return &Summary{
		SessionID:      s.SessionID,
		StartedAt:      s.StartedAt,
		EndedAt:        endedAt,
		Duration:       endedAt.Sub(s.StartedAt),
		TotalExchanges: s.Exchanges(),
		Transcript:     append([]TranscriptEntry(nil), s.Transcript...),
		CollectedData:  s.Data(),
		FinalFlow:      s.ActiveFlow,
		FinalState:     s.CurrentState,
		Terminated:     s.Terminated,
	}
}
