package ivr_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/internal/testutils"
	"github.com/praveen131106/ivr-modern/pkg/adapters/memory"
	"github.com/praveen131106/ivr-modern/pkg/dsl"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

type recordingArchive struct {
	mu        sync.Mutex
	summaries map[string]*domain.Summary
	closed    bool
}

func newRecordingArchive() *recordingArchive {
	return &recordingArchive{summaries: make(map[string]*domain.Summary)}
}

func (a *recordingArchive) Save(_ context.Context, s *domain.Summary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries[s.SessionID] = s
	return nil
}

func (a *recordingArchive) Get(_ context.Context, id string) (*domain.Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.summaries[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (a *recordingArchive) List(context.Context, int) ([]*domain.Summary, error) {
	return nil, nil
}

func (a *recordingArchive) Close() error {
	a.closed = true
	return nil
}

func newEngine(t *testing.T, opts ...ivr.Option) *ivr.Engine {
	t.Helper()
	base := []ivr.Option{ivr.WithIDGenerator(testutils.SequentialIDs("call"))}
	eng, err := ivr.New("", append(base, opts...)...)
	require.NoError(t, err)
	return eng
}

func TestEngine_CreateSession(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "call-1", res.SessionID)
	assert.Equal(t, "train_main", res.Flow)
	assert.Equal(t, "main_menu", res.State)
	assert.True(t, strings.HasPrefix(res.Message, "Welcome to the Indian Railways enquiry line."))
	assert.Len(t, res.Options, 10)
	assert.False(t, res.Terminal)

	ids, err := eng.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"call-1"}, ids)

	state, err := eng.Session(ctx, "call-1")
	require.NoError(t, err)
	assert.Empty(t, state.Transcript, "the welcome prompt is not a transcript entry")
}

func TestEngine_AdvanceUnknownSession(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	_, err := eng.Advance(ctx, "nope", "1", domain.ChannelKeypad)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := eng.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "advance must never create sessions")
}

func TestEngine_AdvanceOversizedInputIsAMiss(t *testing.T) {
	eng := newEngine(t, ivr.WithMaxInputSize(8))
	ctx := context.Background()

	start, err := eng.CreateSession(ctx)
	require.NoError(t, err)

	res, err := eng.Advance(ctx, start.SessionID, "this is far too long", domain.ChannelSpeech)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoMatch, res.Outcome)
	assert.Equal(t, "main_menu", res.State)
	assert.NotEmpty(t, res.Message)
	assert.NotEmpty(t, res.Options)

	state, err := eng.Session(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Turn)
	assert.Equal(t, 1, state.NoMatchCount)
	require.Len(t, state.Transcript, 2)
	assert.Equal(t, "this is ", state.Transcript[0].Text)
}

func TestEngine_AdvanceRepairsInvalidUTF8(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	start, err := eng.CreateSession(ctx)
	require.NoError(t, err)

	res, err := eng.Advance(ctx, start.SessionID, "book \xff ticket", domain.ChannelSpeech)
	require.NoError(t, err)
	assert.Equal(t, "booking", res.Flow)

	state, err := eng.Session(ctx, start.SessionID)
	require.NoError(t, err)
	require.Len(t, state.Transcript, 2)
	assert.Equal(t, "book  ticket", state.Transcript[0].Text)
}

func TestEngine_SpeechCall(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)
	id := res.SessionID

	res, err = eng.Advance(ctx, id, "Hello, umm I want to check the running status of train 12718 please", domain.ChannelSpeech)
	require.NoError(t, err)
	assert.Equal(t, "status", res.Flow)
	assert.Equal(t, "status_report", res.State)
	assert.Contains(t, res.Message, "12718")

	state, err := eng.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "12718", state.CollectedData["train_number"].Value)
	assert.Len(t, state.Transcript, 2)
}

func TestEngine_EndSession(t *testing.T) {
	archive := newRecordingArchive()
	var started, ended []string
	eng := newEngine(t,
		ivr.WithArchive(archive),
		ivr.WithLifecycleHooks(domain.LifecycleHooks{
			OnSessionStart: func(_ context.Context, e *domain.SessionEvent) { started = append(started, e.SessionID) },
			OnSessionEnd:   func(_ context.Context, e *domain.SessionEvent) { ended = append(ended, e.SessionID) },
		}),
	)
	ctx := context.Background()

	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)
	id := res.SessionID

	_, err = eng.Advance(ctx, id, "5", domain.ChannelKeypad)
	require.NoError(t, err)
	_, err = eng.Advance(ctx, id, "my pnr is 1234567890", domain.ChannelSpeech)
	require.NoError(t, err)

	summary, err := eng.EndSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, summary.SessionID)
	assert.Equal(t, 2, summary.TotalExchanges)
	assert.Len(t, summary.Transcript, 4)
	assert.Equal(t, "1234567890", summary.CollectedData["pnr"])
	assert.Equal(t, "pnr_status", summary.FinalFlow)

	archived, err := archive.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, summary, archived)

	assert.Equal(t, []string{id}, started)
	assert.Equal(t, []string{id}, ended)

	_, err = eng.Session(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = eng.EndSession(ctx, id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = eng.Advance(ctx, id, "1", domain.ChannelKeypad)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, eng.Close())
	assert.True(t, archive.closed)
}

func TestEngine_Subscribe(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)

	diffs, cancel, err := eng.Subscribe(ctx, res.SessionID)
	require.NoError(t, err)
	defer cancel()

	_, err = eng.Advance(ctx, res.SessionID, "2", domain.ChannelKeypad)
	require.NoError(t, err)

	select {
	case diff := <-diffs:
		require.NotNil(t, diff)
		require.NotNil(t, diff.Flow)
		assert.Equal(t, "status", *diff.Flow)
		require.NotNil(t, diff.State)
		assert.Equal(t, "ask_train_number", *diff.State)
		assert.Len(t, diff.Transcript, 2)
	case <-time.After(time.Second):
		t.Fatal("no diff received")
	}

	_, err = eng.EndSession(ctx, res.SessionID)
	require.NoError(t, err)

	select {
	case _, ok := <-diffs:
		assert.False(t, ok, "stream is closed when the call ends")
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}
	cancel()
}

func TestEngine_SubscribeEndedSession(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)
	_, err = eng.EndSession(ctx, res.SessionID)
	require.NoError(t, err)

	_, _, err = eng.Subscribe(ctx, res.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_Evict(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	archive := newRecordingArchive()
	eng := newEngine(t,
		ivr.WithClock(func() time.Time { return now }),
		ivr.WithIdleTimeout(5*time.Minute),
		ivr.WithArchive(archive),
	)
	ctx := context.Background()

	idle, err := eng.CreateSession(ctx)
	require.NoError(t, err)

	now = now.Add(4 * time.Minute)
	busy, err := eng.CreateSession(ctx)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = eng.Advance(ctx, busy.SessionID, "9", domain.ChannelKeypad)
	require.NoError(t, err)

	summaries, err := eng.Evict(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, idle.SessionID, summaries[0].SessionID)

	ids, err := eng.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{busy.SessionID}, ids)

	_, err = archive.Get(ctx, idle.SessionID)
	assert.NoError(t, err)
}

func TestNew_RejectsBrokenFlows(t *testing.T) {
	loader := memory.NewLoader(map[string]string{
		"train_main": `{
			"name": "train_main",
			"initial_state": "menu",
			"states": {
				"menu": {
					"prompt": "Press 1.",
					"options": [{"key": "1", "label": "Go", "next_state": "missing"}]
				}
			}
		}`,
	})

	_, err := ivr.New("", ivr.WithLoader(loader))
	require.Error(t, err)

	var verr *domain.FlowValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), `train_main/menu: target "missing" not found`)
	assert.Contains(t, verr.Error(), `flow "agent" not found`)
}

func TestNew_CustomFlows(t *testing.T) {
	loader := memory.NewLoader(map[string]string{
		"hello": `{
			"name": "hello",
			"initial_state": "start",
			"states": {
				"start": {
					"prompt": "Say yes to continue.",
					"options": [{"key": "1", "label": "Yes", "synonyms": ["yes", "continue"], "next_state": "done"}]
				},
				"done": {"prompt": "All done.", "is_terminal": true}
			}
		}`,
	})
	settings := ivr.DefaultSettings()
	settings.Fallback = "flow:hello/start"

	eng := newEngine(t,
		ivr.WithLoader(loader),
		ivr.WithMainFlow("hello"),
		ivr.WithSettings(settings),
	)
	ctx := context.Background()

	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Say yes to continue.", res.Message)

	res, err = eng.Advance(ctx, res.SessionID, "yes", domain.ChannelSpeech)
	require.NoError(t, err)
	assert.Equal(t, "done", res.State)
	assert.True(t, res.Terminal)
	assert.Equal(t, "All done.", res.Message)
}

func TestNew_FlowsDir(t *testing.T) {
	dir := testutils.WriteFlowDir(t, map[string]string{
		"hello.json": `{
			"name": "hello",
			"initial_state": "start",
			"states": {
				"start": {
					"prompt": "Press 1 to finish.",
					"options": [{"key": "1", "label": "Finish", "next_state": "done"}]
				},
				"done": {"prompt": "Bye.", "is_terminal": true}
			}
		}`,
	})

	eng, err := ivr.New(dir, ivr.WithMainFlow("hello"), ivr.WithFallback("flow:hello"))
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Press 1 to finish.", res.Message)

	res, err = eng.Advance(ctx, res.SessionID, "1", domain.ChannelKeypad)
	require.NoError(t, err)
	assert.True(t, res.Terminal)
}

func TestNew_DSLFlows(t *testing.T) {
	b := dsl.New()
	b.Flow("hello").
		State("start").
		Prompt("Press 1 or say yes to leave your name.").
		Option("1", "Leave a name", "ask_name", "yes", "leave my name").
		State("ask_name").
		Prompt("What is your name?").
		Capture("caller_name", "bye").
		State("bye").
		Prompt("Goodbye!").
		Terminal()
	loader, err := b.Build()
	require.NoError(t, err)

	eng := newEngine(t,
		ivr.WithLoader(loader),
		ivr.WithMainFlow("hello"),
		ivr.WithFallback("flow:hello"),
	)
	ctx := context.Background()

	res, err := eng.CreateSession(ctx)
	require.NoError(t, err)
	_, err = eng.Advance(ctx, res.SessionID, "1", domain.ChannelKeypad)
	require.NoError(t, err)
	res, err = eng.Advance(ctx, res.SessionID, "Asha", domain.ChannelSpeech)
	require.NoError(t, err)
	assert.Equal(t, "bye", res.State)
	assert.True(t, res.Terminal)

	summary, err := eng.EndSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", summary.CollectedData["caller_name"])
}
