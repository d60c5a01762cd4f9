package intent

import (
	"fmt"
	"strings"

	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// epsilon absorbs float rounding when comparing a score to a floor.
const epsilon = 1e-9

// Config tunes recognition.
type Config struct {
	// FuzzyFloor is the minimum ratio for a fuzzy option match.
	FuzzyFloor float64 `yaml:"fuzzy_floor"`
	// StationFloor is the minimum ratio for a fuzzy station match.
	StationFloor float64 `yaml:"station_floor"`
	// MinFuzzyLength excludes short synonyms from fuzzy matching.
	MinFuzzyLength int `yaml:"min_fuzzy_length"`
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{FuzzyFloor: 0.72, StationFloor: 0.8, MinFuzzyLength: 4}
}

// Validate checks the configured bounds.
func (c Config) Validate() error {
	if c.FuzzyFloor <= 0 || c.FuzzyFloor > 1 {
		return fmt.Errorf("fuzzy floor must be in (0, 1], got %v", c.FuzzyFloor)
	}
	if c.StationFloor <= 0 || c.StationFloor > 1 {
		return fmt.Errorf("station floor must be in (0, 1], got %v", c.StationFloor)
	}
	if c.MinFuzzyLength < 1 {
		return fmt.Errorf("min fuzzy length must be positive, got %d", c.MinFuzzyLength)
	}
	return nil
}

// Candidate is an option as seen by the classifier. Synonyms are normalized.
type Candidate struct {
	Key      string
	Synonyms []string
}

// CandidatesFrom converts option definitions, keeping declaration order.
func CandidatesFrom(opts []domain.OptionDefinition) []Candidate {
	out := make([]Candidate, 0, len(opts))
	for _, o := range opts {
		c := Candidate{Key: o.Key}
		for _, s := range o.Synonyms {
			if n := Normalize(s); n != "" {
				c.Synonyms = append(c.Synonyms, n)
			}
		}
		out = append(out, c)
	}
	return out
}

// Classifier implements the recognition pipeline.
type Classifier struct {
	cfg      Config
	stations []stationPhrase
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(c *Classifier) { c.cfg = cfg }
}

// WithStations sets the station catalog used by the station recognizer.
func WithStations(stations ...Station) Option {
	return func(c *Classifier) { c.stations = newStationPhrases(stations) }
}

// New creates a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the active tuning.
func (c *Classifier) Config() Config { return c.cfg }

// Classify interprets raw against the candidate options. Hints name the
// fields the state is waiting for. It never fails: unrecognisable input
// yields a decision with no match and zero confidence.
func (c *Classifier) Classify(raw string, candidates []Candidate, hints ...string) domain.IntentDecision {
	text := Normalize(raw)
	if text == "" {
		return domain.IntentDecision{}
	}

	if kind, ok := DetectGreeting(text); ok {
		return domain.IntentDecision{IsGreeting: true, Greeting: kind}
	}

	words := strings.Fields(text)
	var dec domain.IntentDecision
	if key, ok := matchKey(words, candidates); ok {
		dec = domain.IntentDecision{MatchedOption: key, Confidence: 1, Method: domain.MethodKey}
	} else if key, ok := matchExact(text, candidates); ok {
		dec = domain.IntentDecision{MatchedOption: key, Confidence: 1, Method: domain.MethodExact}
	} else if key, score := c.matchFuzzy(text, words, candidates); key != "" {
		dec = domain.IntentDecision{MatchedOption: key, Confidence: score, Method: domain.MethodFuzzy}
	}

	dec.Entities = c.extract(text, hints)
	return dec
}

var keyPrefixes = map[string]struct{}{
	"press": {}, "option": {}, "number": {}, "select": {}, "choose": {}, "dial": {},
}

var spokenKeys = map[string]string{
	"zero": "0", "oh": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"star": "*", "hash": "#", "pound": "#",
}

// matchKey accepts a bare key, optionally spoken as a word or introduced by "press".
func matchKey(words []string, candidates []Candidate) (string, bool) {
	for len(words) > 1 {
		if _, ok := keyPrefixes[words[0]]; !ok {
			break
		}
		words = words[1:]
	}
	if len(words) != 1 {
		return "", false
	}
	token := words[0]
	if k, ok := spokenKeys[token]; ok {
		token = k
	}
	for _, cand := range candidates {
		if strings.EqualFold(cand.Key, token) {
			return cand.Key, true
		}
	}
	return "", false
}

// matchExact returns the first candidate, in declaration order, owning a synonym present in text.
func matchExact(text string, candidates []Candidate) (string, bool) {
	for _, cand := range candidates {
		for _, syn := range cand.Synonyms {
			if containsPhrase(text, syn) {
				return cand.Key, true
			}
		}
	}
	return "", false
}

func (c *Classifier) matchFuzzy(text string, words []string, candidates []Candidate) (string, float64) {
	bestKey, best := "", 0.0
	for _, cand := range candidates {
		for _, syn := range cand.Synonyms {
			if len([]rune(syn)) < c.cfg.MinFuzzyLength {
				continue
			}
			if r := windowRatio(text, words, syn); r > best {
				bestKey, best = cand.Key, r
			}
		}
	}
	if bestKey == "" || best+epsilon < c.cfg.FuzzyFloor {
		return "", 0
	}
	return bestKey, best
}
