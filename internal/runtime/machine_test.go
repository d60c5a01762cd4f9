package runtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveen131106/ivr-modern/flows"
	"github.com/praveen131106/ivr-modern/internal/railway"
	"github.com/praveen131106/ivr-modern/internal/runtime"
	"github.com/praveen131106/ivr-modern/pkg/adapters/file"
	"github.com/praveen131106/ivr-modern/pkg/domain"
	"github.com/praveen131106/ivr-modern/pkg/dsl"
	"github.com/praveen131106/ivr-modern/pkg/intent"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func loadFlows(t *testing.T) []*domain.FlowDefinition {
	t.Helper()
	defs, err := file.NewLoader(flows.FS).LoadFlows()
	require.NoError(t, err)
	return defs
}

func newMachine(t *testing.T, opts ...runtime.Option) *runtime.Machine {
	t.Helper()
	base := []runtime.Option{
		runtime.WithResponses(railway.Responders()),
		runtime.WithClock(func() time.Time { return fixedNow }),
	}
	m, err := runtime.NewMachine(loadFlows(t), flows.MainFlow, intent.New(intent.WithStations(railway.Stations...)), append(base, opts...)...)
	require.NoError(t, err)
	return m
}

type step struct {
	input   string
	channel domain.Channel
}

func speak(inputs ...string) []step {
	out := make([]step, len(inputs))
	for i, in := range inputs {
		out[i] = step{input: in, channel: domain.ChannelSpeech}
	}
	return out
}

// play runs a call and returns the final session and the last result.
func play(t *testing.T, m *runtime.Machine, steps []step) (*domain.SessionState, []*domain.TurnResult) {
	t.Helper()
	s, _, err := m.Start(context.Background(), "call-1")
	require.NoError(t, err)

	var results []*domain.TurnResult
	for _, st := range steps {
		var res *domain.TurnResult
		s, res, err = m.Advance(context.Background(), s, st.input, st.channel)
		require.NoError(t, err, "input %q", st.input)
		results = append(results, res)
	}
	return s, results
}

func TestMachine_Start(t *testing.T) {
	m := newMachine(t)
	s, res, err := m.Start(context.Background(), "call-1")
	require.NoError(t, err)

	assert.Equal(t, "train_main", s.ActiveFlow)
	assert.Equal(t, "main_menu", s.CurrentState)
	assert.Empty(t, s.Transcript, "the welcome prompt is not recorded")
	assert.Contains(t, res.Message, "Welcome")
	assert.Len(t, res.Options, 10)
	assert.False(t, res.Terminal)
}

func TestMachine_BookingScenario(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("hello", "1", "12345", "sleeper"))

	assert.Equal(t, domain.OutcomeGreeting, results[0].Outcome)
	assert.Equal(t, "main_menu", results[0].State)
	assert.Equal(t, "ask_train_number", results[1].State)
	assert.Equal(t, domain.OutcomeFreeText, results[2].Outcome)
	assert.Equal(t, "ask_class", results[2].State)
	assert.Contains(t, results[2].Message, "12345")

	last := results[3]
	assert.Equal(t, "booking_confirmed", last.State)
	assert.True(t, last.Terminal)
	assert.Contains(t, last.Message, "Your PNR number is")

	assert.Len(t, s.Transcript, 8)
	assert.Equal(t, map[string]string{"train_number": "12345", "class": "sleeper"}, s.Data())
	assert.True(t, s.Terminated)
}

func TestMachine_KeypadDirect(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, []step{
		{"4", domain.ChannelKeypad},
		{"1234567890", domain.ChannelKeypad},
		{"1", domain.ChannelKeypad},
	})

	assert.Equal(t, domain.OutcomeKeypad, results[0].Outcome)
	assert.Equal(t, "cancellation", results[0].Flow)
	assert.Equal(t, "confirm_cancel", results[1].State)
	assert.Equal(t, "cancelled", results[2].State)
	assert.True(t, s.Terminated)
	assert.Equal(t, "1234567890", s.Data()["pnr"])
}

func TestMachine_FuzzyRouting(t *testing.T) {
	m := newMachine(t)
	_, results := play(t, m, speak("bok a tiket"))

	assert.Equal(t, domain.OutcomeMatched, results[0].Outcome)
	assert.Equal(t, "booking", results[0].Flow)
	assert.Equal(t, "ask_train_number", results[0].State)
	assert.InDelta(t, 0.917, results[0].Confidence, 0.01)
}

func TestMachine_FallbackAfterRepeatedMisses(t *testing.T) {
	var fallbacks int
	m := newMachine(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnFallback: func(context.Context, *domain.StateEvent) { fallbacks++ },
	}))
	s, results := play(t, m, speak("asdkj", "zzz", "???"))

	assert.Equal(t, domain.OutcomeNoMatch, results[0].Outcome)
	assert.Contains(t, results[0].Message, "didn't quite catch that")
	assert.Contains(t, results[0].Message, "Please try again.")
	assert.Equal(t, domain.OutcomeNoMatch, results[1].Outcome)
	assert.Contains(t, results[1].Message, "transfer your call")

	assert.Equal(t, domain.OutcomeFallback, results[2].Outcome)
	assert.Equal(t, "agent", results[2].Flow)
	assert.Equal(t, "connect_agent", results[2].State)
	assert.True(t, results[2].Terminal)
	assert.Zero(t, s.NoMatchCount)
	assert.Equal(t, 1, fallbacks)
}

func TestMachine_FallbackIgnoresInput(t *testing.T) {
	m := newMachine(t)
	_, results := play(t, m, speak("asdkj", "zzz", "book a ticket"))
	assert.Equal(t, domain.OutcomeFallback, results[2].Outcome)
	assert.Equal(t, "agent", results[2].Flow)
}

func TestMachine_AcceptedTransitionResetsMisses(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("asdkj", "repeat", "zzz"))

	assert.Equal(t, domain.OutcomeMatched, results[1].Outcome)
	assert.Equal(t, domain.OutcomeNoMatch, results[2].Outcome)
	assert.Equal(t, 1, s.NoMatchCount)
}

func TestMachine_GreetingKeepsState(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("asdkj", "how are you", "thank you"))

	assert.Equal(t, domain.OutcomeGreeting, results[1].Outcome)
	assert.Contains(t, results[1].Message, "thank you for asking")
	assert.Contains(t, results[1].Message, "Welcome")
	assert.Contains(t, results[2].Message, "welcome")
	assert.Equal(t, "main_menu", s.CurrentState)
	assert.Equal(t, 1, s.NoMatchCount, "greetings do not touch the counter")
}

func TestMachine_EntityPrefillSkipsState(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("12345", "1"))

	assert.Equal(t, domain.OutcomeEntities, results[0].Outcome)
	assert.Contains(t, results[0].Message, "Got it: train number 12345.")
	assert.Equal(t, "main_menu", results[0].State)
	assert.Zero(t, s.NoMatchCount)

	assert.Equal(t, "booking", results[1].Flow)
	assert.Equal(t, "ask_class", results[1].State)
	assert.Equal(t, "12345", s.Data()["train_number"])
}

func TestMachine_RepeatedEntityCountsAsMiss(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("tomorrow", "tomorrow", "tomorrow", "tomorrow"))

	assert.Equal(t, domain.OutcomeEntities, results[0].Outcome)
	assert.Equal(t, domain.OutcomeNoMatch, results[1].Outcome, "nothing new was captured")
	assert.Equal(t, domain.OutcomeNoMatch, results[2].Outcome)
	assert.Equal(t, domain.OutcomeFallback, results[3].Outcome)
	assert.Equal(t, "agent", s.ActiveFlow)
}

func TestMachine_Miss(t *testing.T) {
	m := newMachine(t)
	s, _, err := m.Start(context.Background(), "call-1")
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		var res *domain.TurnResult
		s, res, err = m.Miss(context.Background(), s, "1", domain.ChannelKeypad)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNoMatch, res.Outcome, "the input is never routed")
		assert.Equal(t, "main_menu", res.State)
		assert.NotEmpty(t, res.Options)
		assert.Equal(t, i, s.NoMatchCount)
	}
	assert.Len(t, s.Transcript, 4)

	s, res, err := m.Miss(context.Background(), s, "1", domain.ChannelKeypad)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFallback, res.Outcome)
	assert.Equal(t, "agent", s.ActiveFlow)
}

func TestNewMachine_InvalidCapturePattern(t *testing.T) {
	b := dsl.New()
	b.Flow("f").State("ask").Capture("x", "done").Pattern("([0-9]", "digits").State("done").Terminal()
	defs, err := b.Flows()
	require.NoError(t, err)

	_, err = runtime.NewMachine(defs, "f", intent.New(), runtime.WithSettings(runtime.Settings{
		AcceptThreshold: 0.6, NoMatchLimit: 2, Fallback: "flow:f", HighConfidence: 0.9,
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "f/ask: invalid capture pattern")
}

func TestMachine_UtteranceWithEntityRoutesAndSkips(t *testing.T) {
	m := newMachine(t)
	_, results := play(t, m, speak("what is the running status of train 12718"))

	assert.Equal(t, "status", results[0].Flow)
	assert.Equal(t, "status_report", results[0].State)
	assert.Contains(t, results[0].Message, "12718")
}

func TestMachine_FreeTextPatternRejects(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("book a ticket", "tomorrow morning"))

	last := results[1]
	assert.Equal(t, domain.OutcomeEntities, last.Outcome, "a date is still acknowledged")

	s2, res, err := m.Advance(context.Background(), s, "train abc", domain.ChannelSpeech)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoMatch, res.Outcome)
	assert.Contains(t, res.Message, "5-digit train number")
	assert.Equal(t, "ask_train_number", s2.CurrentState)
}

func TestMachine_StationsRoute(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("trains between stations", "from mumbai to new delhi"))

	assert.Equal(t, "ask_source", results[0].State)
	assert.Equal(t, "route_report", results[1].State)
	assert.Equal(t, "Mumbai", s.Data()["source_station"])
	assert.Equal(t, "New Delhi", s.Data()["destination_station"])
}

func TestMachine_GlobalMainMenu(t *testing.T) {
	m := newMachine(t)
	_, results := play(t, m, speak("book a ticket", "go back"))

	assert.Equal(t, "train_main", results[1].Flow)
	assert.Equal(t, "main_menu", results[1].State)
}

func TestMachine_EndTarget(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("train status", "12718", "2", "hello"))

	assert.Equal(t, domain.EndState, results[2].State)
	assert.True(t, results[2].Terminal)
	assert.Equal(t, runtime.DefaultSettings().Goodbye, results[2].Message)

	assert.Equal(t, domain.OutcomeTerminated, results[3].Outcome)
	assert.True(t, results[3].Terminal)
	assert.Len(t, s.Transcript, 8)
}

func TestMachine_ClearsOption(t *testing.T) {
	m := newMachine(t)
	s, results := play(t, m, speak("train status", "12718", "another train"))

	assert.Equal(t, "ask_train_number", results[2].State)
	assert.NotContains(t, s.Data(), "train_number")
}

func TestMachine_AdvanceDoesNotMutateInput(t *testing.T) {
	m := newMachine(t)
	s, _, err := m.Start(context.Background(), "call-1")
	require.NoError(t, err)

	next, _, err := m.Advance(context.Background(), s, "1", domain.ChannelKeypad)
	require.NoError(t, err)

	assert.Equal(t, "main_menu", s.CurrentState)
	assert.Empty(t, s.Transcript)
	assert.Zero(t, s.Turn)
	assert.Equal(t, "booking", next.ActiveFlow)
}

func TestMachine_Deterministic(t *testing.T) {
	inputs := speak("hello", "bok a tiket", "12718", "third ac")
	a, ra := play(t, newMachine(t), inputs)
	b, rb := play(t, newMachine(t), inputs)

	assert.Equal(t, a, b)
	assert.Equal(t, ra, rb)
}

func TestMachine_TranscriptPerTurn(t *testing.T) {
	m := newMachine(t)
	s, _ := play(t, m, speak("hello", "asdkj", "1", "", "12345"))

	require.Len(t, s.Transcript, 10)
	for i, e := range s.Transcript {
		want := domain.SpeakerCaller
		if i%2 == 1 {
			want = domain.SpeakerSystem
		}
		assert.Equal(t, want, e.Speaker)
		assert.Equal(t, i/2+1, e.Turn)
	}
	assert.Equal(t, 5, s.Exchanges())
}

func TestMachine_Hooks(t *testing.T) {
	var entered, left []string
	var outcomes []domain.Outcome
	m := newMachine(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStateEnter: func(_ context.Context, e *domain.StateEvent) { entered = append(entered, e.Flow+"/"+e.State) },
		OnStateLeave: func(_ context.Context, e *domain.StateEvent) { left = append(left, e.Flow+"/"+e.State) },
		OnTurn:       func(_ context.Context, e *domain.TurnEvent) { outcomes = append(outcomes, e.Outcome) },
	}))
	play(t, m, speak("1", "hi"))

	assert.Equal(t, []string{"train_main/main_menu", "booking/ask_train_number"}, entered)
	assert.Equal(t, []string{"train_main/main_menu"}, left)
	assert.Equal(t, []domain.Outcome{domain.OutcomeMatched, domain.OutcomeGreeting}, outcomes)
}

func TestMachine_CanonicalSynonymsMatchExactly(t *testing.T) {
	rec := intent.New(intent.WithStations(railway.Stations...))
	for _, f := range loadFlows(t) {
		for id, st := range f.States {
			opts := f.OptionsFor(st)
			cands := intent.CandidatesFrom(opts)
			for _, opt := range opts {
				if len(opt.Synonyms) == 0 {
					continue
				}
				dec := rec.Classify(opt.Synonyms[0], cands)
				assert.Equal(t, opt.Key, dec.MatchedOption, "%s/%s: %q", f.Name, id, opt.Synonyms[0])
				assert.Equal(t, 1.0, dec.Confidence, "%s/%s: %q", f.Name, id, opt.Synonyms[0])
			}
		}
	}
}

func TestMachine_ListFlows(t *testing.T) {
	infos := newMachine(t).ListFlows()
	require.Len(t, infos, 10)
	assert.Equal(t, "agent", infos[0].Name)
	for _, info := range infos {
		assert.Contains(t, info.States, info.InitialState)
	}
}

func TestNewMachine_Errors(t *testing.T) {
	rec := intent.New()
	_, err := runtime.NewMachine(loadFlows(t), "missing", rec)
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	bad := runtime.DefaultSettings()
	bad.NoMatchLimit = 0
	_, err = runtime.NewMachine(loadFlows(t), flows.MainFlow, rec, runtime.WithSettings(bad))
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, runtime.DefaultSettings().Validate())

	s := runtime.DefaultSettings()
	s.Fallback = ""
	assert.Error(t, s.Validate())

	s = runtime.DefaultSettings()
	s.AcceptThreshold = 1.5
	assert.Error(t, s.Validate())
}
