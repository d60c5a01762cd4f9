// Package runtime implements the flow state machine that drives a call.
//
// A Machine is built once from the validated flow set and is then shared by
// every session. It never mutates its input: Advance clones the session,
// applies one caller turn and returns the new snapshot together with what
// the caller hears next.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/praveen131106/ivr-modern/internal/logging"
	"github.com/praveen131106/ivr-modern/pkg/domain"
	"github.com/praveen131106/ivr-modern/pkg/intent"
)

// maxHops bounds pass-through chains of already-collected states.
const maxHops = 16

// Recognizer classifies an utterance against the options of a state.
type Recognizer interface {
	Classify(raw string, candidates []intent.Candidate, hints ...string) domain.IntentDecision
}

// ResponseRenderer produces the text of a state's named response.
type ResponseRenderer interface {
	Respond(name string, data map[string]string) (string, bool)
}

// Settings holds the dialogue policy.
type Settings struct {
	// AcceptThreshold is the minimum confidence for a recognised option to be followed.
	AcceptThreshold float64 `yaml:"accept_threshold"`
	// NoMatchLimit is the number of consecutive misses before the call is handed to Fallback.
	NoMatchLimit int `yaml:"no_match_limit"`
	// Fallback is the target used once NoMatchLimit is reached.
	Fallback string `yaml:"fallback"`
	// HighConfidence lets an entity replace a more confident stored value.
	HighConfidence float64 `yaml:"high_confidence"`
	// Goodbye is spoken when a call reaches the end target or is addressed after termination.
	Goodbye string `yaml:"goodbye"`
}

// DefaultSettings returns the standard dialogue policy.
func DefaultSettings() Settings {
	return Settings{
		AcceptThreshold: 0.6,
		NoMatchLimit:    2,
		Fallback:        "flow:agent",
		HighConfidence:  0.9,
		Goodbye:         "Thank you for calling Indian Railways. Goodbye!",
	}
}

// Validate checks the policy bounds.
func (s Settings) Validate() error {
	if s.AcceptThreshold <= 0 || s.AcceptThreshold > 1 {
		return fmt.Errorf("accept threshold must be in (0, 1], got %v", s.AcceptThreshold)
	}
	if s.HighConfidence <= 0 || s.HighConfidence > 1 {
		return fmt.Errorf("high confidence must be in (0, 1], got %v", s.HighConfidence)
	}
	if s.NoMatchLimit < 1 {
		return fmt.Errorf("no-match limit must be positive, got %d", s.NoMatchLimit)
	}
	if _, err := domain.ParseTarget(s.Fallback); err != nil {
		return fmt.Errorf("invalid fallback: %w", err)
	}
	return nil
}

// Machine is the flow state machine.
type Machine struct {
	flows     map[string]*domain.FlowDefinition
	mainFlow  string
	rec       Recognizer
	responses ResponseRenderer
	settings  Settings
	fallback  domain.Target
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	now       func() time.Time

	prompts    map[string]*template.Template
	patterns   map[string]*regexp.Regexp
	candidates map[string][]intent.Candidate
}

// Option configures a Machine.
type Option func(*Machine)

// WithSettings overrides the default dialogue policy.
func WithSettings(s Settings) Option {
	return func(m *Machine) { m.settings = s }
}

// WithResponses sets the renderer for state responses.
func WithResponses(r ResponseRenderer) Option {
	return func(m *Machine) { m.responses = r }
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(m *Machine) { m.hooks = h }
}

// WithLogger configures the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine compiles the prompt templates, capture patterns and option candidates of every state.
// Flows are expected to be validated already; NewMachine only fails on data it cannot use.
func NewMachine(flows []*domain.FlowDefinition, mainFlow string, rec Recognizer, opts ...Option) (*Machine, error) {
	m := &Machine{
		flows:      make(map[string]*domain.FlowDefinition, len(flows)),
		mainFlow:   mainFlow,
		rec:        rec,
		settings:   DefaultSettings(),
		logger:     logging.NewNop(),
		now:        time.Now,
		prompts:    make(map[string]*template.Template),
		patterns:   make(map[string]*regexp.Regexp),
		candidates: make(map[string][]intent.Candidate),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.settings.Validate(); err != nil {
		return nil, err
	}
	m.fallback, _ = domain.ParseTarget(m.settings.Fallback)

	for _, f := range flows {
		m.flows[f.Name] = f
	}
	if _, ok := m.flows[mainFlow]; !ok {
		return nil, fmt.Errorf("%w: main flow %q", domain.ErrFlowNotFound, mainFlow)
	}

	for _, f := range flows {
		for id, st := range f.States {
			key := stateKey(f.Name, id)
			tmpl, err := template.New(key).Option("missingkey=zero").Parse(st.Prompt)
			if err != nil {
				return nil, fmt.Errorf("state %s: invalid prompt template: %w", key, err)
			}
			m.prompts[key] = tmpl
			if st.FreeText != nil && st.FreeText.Pattern != "" {
				re, err := regexp.Compile(st.FreeText.Pattern)
				if err != nil {
					return nil, fmt.Errorf("state %s: invalid capture pattern: %w", key, err)
				}
				m.patterns[key] = re
			}
			m.candidates[key] = intent.CandidatesFrom(f.OptionsFor(st))
		}
	}
	return m, nil
}

// Settings returns the active dialogue policy.
func (m *Machine) Settings() Settings { return m.settings }

// MainFlow is the flow every call starts in.
func (m *Machine) MainFlow() string { return m.mainFlow }

// Flow looks a flow up by name.
func (m *Machine) Flow(name string) (*domain.FlowDefinition, bool) {
	f, ok := m.flows[name]
	return f, ok
}

// Flows returns the loaded flows sorted by name.
func (m *Machine) Flows() []*domain.FlowDefinition {
	out := make([]*domain.FlowDefinition, 0, len(m.flows))
	for _, f := range m.flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListFlows describes the loaded flows sorted by name.
func (m *Machine) ListFlows() []domain.FlowInfo {
	flows := m.Flows()
	out := make([]domain.FlowInfo, 0, len(flows))
	for _, f := range flows {
		states := make([]string, 0, len(f.States))
		for id := range f.States {
			states = append(states, id)
		}
		sort.Strings(states)
		out = append(out, domain.FlowInfo{
			Name:         f.Name,
			Description:  f.Description,
			InitialState: f.InitialState,
			States:       states,
			OptionCount:  f.OptionCount(),
		})
	}
	return out
}

// Start creates a session positioned at the main flow's initial state.
// The welcome prompt is returned but not recorded in the transcript.
func (m *Machine) Start(ctx context.Context, sessionID string) (*domain.SessionState, *domain.TurnResult, error) {
	main := m.flows[m.mainFlow]
	s := domain.NewSession(sessionID, main.Name, main.InitialState, m.now())

	msg, err := m.enter(ctx, s, domain.Target{Kind: domain.TargetFlow, Flow: main.Name})
	if err != nil {
		return nil, nil, err
	}
	res := m.result(s, msg, "")
	m.logger.Debug("Session started", "session_id", sessionID, "flow", s.ActiveFlow, "state", s.CurrentState)
	return s, res, nil
}

// Advance applies one caller turn. The input session is left untouched.
func (m *Machine) Advance(ctx context.Context, current *domain.SessionState, raw string, ch domain.Channel) (*domain.SessionState, *domain.TurnResult, error) {
	return m.play(ctx, current, raw, ch, m.turn)
}

// Miss applies a turn whose input could not be used, such as an oversized utterance.
// It is handled like an unrecognised input: the caller hears the help prompt and the
// miss counts towards the fallback.
func (m *Machine) Miss(ctx context.Context, current *domain.SessionState, raw string, ch domain.Channel) (*domain.SessionState, *domain.TurnResult, error) {
	return m.play(ctx, current, raw, ch, func(ctx context.Context, s *domain.SessionState, _ string, _ domain.Channel) (*domain.TurnResult, error) {
		flow, st, res, err := m.prelude(ctx, s)
		if res != nil || err != nil {
			return res, err
		}
		return m.noMatch(s, flow, st, flow.OptionsFor(st)), nil
	})
}

type turnFunc func(ctx context.Context, s *domain.SessionState, raw string, ch domain.Channel) (*domain.TurnResult, error)

func (m *Machine) play(ctx context.Context, current *domain.SessionState, raw string, ch domain.Channel, fn turnFunc) (*domain.SessionState, *domain.TurnResult, error) {
	s := current.Clone()
	now := m.now()

	s.Turn++
	s.Record(domain.SpeakerCaller, raw, ch, now)

	res, err := fn(ctx, s, raw, ch)
	if err != nil {
		return nil, nil, err
	}

	s.Record(domain.SpeakerSystem, res.Message, ch, now)

	m.emitTurn(ctx, s, ch, res)
	m.logger.Debug("Turn processed",
		"session_id", s.SessionID,
		"turn", s.Turn,
		"outcome", res.Outcome,
		"flow", s.ActiveFlow,
		"state", s.CurrentState,
		"confidence", res.Confidence,
	)
	return s, res, nil
}

// prelude handles what every turn checks first: a finished call and an exhausted miss budget.
// A non-nil result ends the turn.
func (m *Machine) prelude(ctx context.Context, s *domain.SessionState) (*domain.FlowDefinition, *domain.StateDefinition, *domain.TurnResult, error) {
	if s.Terminated {
		return nil, nil, m.result(s, m.settings.Goodbye, domain.OutcomeTerminated), nil
	}

	flow, st, err := m.position(s)
	if err != nil {
		return nil, nil, nil, err
	}

	if s.NoMatchCount >= m.settings.NoMatchLimit {
		m.emitFallback(ctx, s)
		msg, err := m.transition(ctx, s, m.fallback)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, m.result(s, msg, domain.OutcomeFallback), nil
	}
	return flow, st, nil, nil
}

func (m *Machine) noMatch(s *domain.SessionState, flow *domain.FlowDefinition, st *domain.StateDefinition, options []domain.OptionDefinition) *domain.TurnResult {
	s.NoMatchCount++
	return m.result(s, m.helpMessage(s, flow, st, options), domain.OutcomeNoMatch)
}

func (m *Machine) turn(ctx context.Context, s *domain.SessionState, raw string, ch domain.Channel) (*domain.TurnResult, error) {
	flow, st, res, err := m.prelude(ctx, s)
	if res != nil || err != nil {
		return res, err
	}

	options := flow.OptionsFor(st)

	if ch == domain.ChannelKeypad {
		key := strings.TrimSpace(raw)
		for _, opt := range options {
			if opt.Key == key {
				m.applyOption(s, opt, nil)
				msg, err := m.transition(ctx, s, opt.Next)
				if err != nil {
					return nil, err
				}
				res := m.result(s, msg, domain.OutcomeKeypad)
				res.MatchedOption, res.Confidence = opt.Key, 1
				return res, nil
			}
		}
	}

	dec := m.rec.Classify(raw, m.candidates[stateKey(flow.Name, st.ID)], hintsFor(st, options)...)

	if dec.IsGreeting {
		msg := joinMessage(greetingReplies[dec.Greeting], m.renderPrompt(s, flow, st))
		return m.result(s, msg, domain.OutcomeGreeting), nil
	}

	if dec.Matched() && dec.Confidence+epsilon >= m.settings.AcceptThreshold {
		for _, opt := range options {
			if opt.Key != dec.MatchedOption {
				continue
			}
			m.applyOption(s, opt, dec.Entities)
			msg, err := m.transition(ctx, s, opt.Next)
			if err != nil {
				return nil, err
			}
			res := m.result(s, msg, domain.OutcomeMatched)
			res.MatchedOption, res.Confidence = opt.Key, dec.Confidence
			return res, nil
		}
	}

	captured := m.mergeEntities(s, dec.Entities)

	if st.FreeText != nil {
		if value, ok := freeTextValue(st.FreeText, m.patterns[stateKey(flow.Name, st.ID)], raw, dec.Entities); ok {
			s.Collect(st.FreeText.Field, domain.Field{
				Value:      value,
				Confidence: 1,
				Turn:       s.Turn,
				Source:     sourceFreeText,
			}, m.settings.HighConfidence)
			msg, err := m.transition(ctx, s, st.FreeText.Next)
			if err != nil {
				return nil, err
			}
			res := m.result(s, msg, domain.OutcomeFreeText)
			res.Confidence = 1
			return res, nil
		}
	}

	if len(captured) > 0 {
		msg := joinMessage(acknowledge(captured, dec.Entities), m.renderPrompt(s, flow, st))
		return m.result(s, msg, domain.OutcomeEntities), nil
	}

	return m.noMatch(s, flow, st, options), nil
}

// result builds the caller-facing view of the session after a turn.
func (m *Machine) result(s *domain.SessionState, msg string, outcome domain.Outcome) *domain.TurnResult {
	res := &domain.TurnResult{
		SessionID: s.SessionID,
		Message:   msg,
		Flow:      s.ActiveFlow,
		State:     s.CurrentState,
		Terminal:  s.Terminated,
		Outcome:   outcome,
		Options:   []domain.MenuOption{},
	}
	if s.Terminated {
		return res
	}
	if flow, st, err := m.position(s); err == nil {
		for _, opt := range flow.OptionsFor(st) {
			res.Options = append(res.Options, domain.MenuOption{Key: opt.Key, Label: opt.Label})
		}
	}
	return res
}

// position resolves the session's flow and state definitions.
func (m *Machine) position(s *domain.SessionState) (*domain.FlowDefinition, *domain.StateDefinition, error) {
	flow, ok := m.flows[s.ActiveFlow]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, s.ActiveFlow)
	}
	st, ok := flow.State(s.CurrentState)
	if !ok {
		return nil, nil, fmt.Errorf("session %s is at unknown state %s/%s", s.SessionID, s.ActiveFlow, s.CurrentState)
	}
	return flow, st, nil
}

func stateKey(flow, state string) string {
	return flow + "/" + state
}

// hintsFor lists the fields the state is waiting for.
func hintsFor(st *domain.StateDefinition, options []domain.OptionDefinition) []string {
	var hints []string
	if st.FreeText != nil {
		hints = append(hints, st.FreeText.Field)
	}
	for _, opt := range options {
		hints = append(hints, opt.RequiredFields...)
	}
	return hints
}
