package domain

// MatchMethod records which stage of recognition produced a match.
type MatchMethod string

const (
	MethodNone  MatchMethod = ""
	MethodKey   MatchMethod = "key"
	MethodExact MatchMethod = "exact"
	MethodFuzzy MatchMethod = "fuzzy"
)

// GreetingKind groups social utterances.
type GreetingKind string

const (
	GreetingHello     GreetingKind = "hello"
	GreetingHowAreYou GreetingKind = "how_are_you"
	GreetingThanks    GreetingKind = "thanks"
)

// Entity is a structured value recognised inside an utterance.
type Entity struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Recognizer string  `json:"recognizer"`
}

// IntentDecision is the outcome of classifying one utterance.
type IntentDecision struct {
	// MatchedOption is the option key, empty when nothing matched.
	MatchedOption string            `json:"matched_option,omitempty"`
	Confidence    float64           `json:"confidence"`
	Method        MatchMethod       `json:"method,omitempty"`
	Entities      map[string]Entity `json:"entities,omitempty"`
	IsGreeting    bool              `json:"is_greeting,omitempty"`
	Greeting      GreetingKind      `json:"greeting,omitempty"`
}

// Matched reports whether an option was selected.
func (d IntentDecision) Matched() bool { return d.MatchedOption != "" }
