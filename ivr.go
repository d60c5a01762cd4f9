package ivr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/praveen131106/ivr-modern/flows"
	"github.com/praveen131106/ivr-modern/internal/logging"
	"github.com/praveen131106/ivr-modern/internal/railway"
	"github.com/praveen131106/ivr-modern/internal/runtime"
	"github.com/praveen131106/ivr-modern/internal/sanitize"
	"github.com/praveen131106/ivr-modern/internal/validator"
	"github.com/praveen131106/ivr-modern/pkg/adapters/file"
	"github.com/praveen131106/ivr-modern/pkg/adapters/memory"
	"github.com/praveen131106/ivr-modern/pkg/domain"
	"github.com/praveen131106/ivr-modern/pkg/intent"
	"github.com/praveen131106/ivr-modern/pkg/ports"
	"github.com/praveen131106/ivr-modern/pkg/session"
)

// Engine is the high-level entry point of the IVR simulator.
// It owns the validated flow set, the live session registry and, when
// configured, the archive of ended calls.
type Engine struct {
	machine  *runtime.Machine
	sessions *session.Manager
	streams  *streamManager
	loader   ports.FlowLoader
	store    ports.SessionStore
	locker   ports.DistributedLocker
	archive  ports.SummaryArchive
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	mainFlow  string
	settings  runtime.Settings
	intentCfg intent.Config
	maxInput  int
	idle      time.Duration
	now       func() time.Time
	newID     func() string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom FlowLoader, bypassing the embedded and directory loaders.
func WithLoader(l ports.FlowLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithStore sets the session store. The default keeps sessions in memory.
func WithStore(s ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker enables distributed locking of session turns.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithArchive stores the summary of every ended call.
func WithArchive(a ports.SummaryArchive) Option {
	return func(e *Engine) {
		e.archive = a
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Settings is the dialogue policy: acceptance threshold, no-match limit,
// fallback target and goodbye message.
type Settings = runtime.Settings

// DefaultSettings returns the standard dialogue policy.
func DefaultSettings() Settings {
	return runtime.DefaultSettings()
}

// WithSettings overrides the dialogue policy.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithFallback overrides only the target used after repeated misses.
func WithFallback(target string) Option {
	return func(e *Engine) {
		e.settings.Fallback = target
	}
}

// WithIntentConfig overrides recognition tuning.
func WithIntentConfig(cfg intent.Config) Option {
	return func(e *Engine) {
		e.intentCfg = cfg
	}
}

// WithMainFlow configures the flow every call starts in (default: "train_main").
func WithMainFlow(name string) Option {
	return func(e *Engine) {
		e.mainFlow = name
	}
}

// WithMaxInputSize bounds a single caller input in bytes.
func WithMaxInputSize(n int) Option {
	return func(e *Engine) {
		e.maxInput = n
	}
}

// WithIdleTimeout sets how long a session may stay silent before Evict removes it.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.idle = d
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator replaces the session id generator (default: random UUIDs).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New loads and validates the flow set and builds the engine.
// An empty flowsDir serves the embedded default flows. Any malformed
// document or broken reference is returned as an error.
func New(flowsDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		mainFlow:  flows.MainFlow,
		settings:  runtime.DefaultSettings(),
		intentCfg: intent.DefaultConfig(),
		idle:      30 * time.Minute,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.loader == nil {
		if flowsDir == "" {
			eng.loader = file.NewLoader(flows.FS)
		} else {
			eng.loader = file.NewDirLoader(flowsDir)
			eng.logger = eng.logger.With("flows_dir", flowsDir)
		}
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if err := eng.intentCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intent config: %w", err)
	}

	defs, err := eng.loader.LoadFlows()
	if err != nil {
		return nil, fmt.Errorf("failed to load flows: %w", err)
	}

	responders := railway.Responders()
	if err := validator.ValidateFlows(defs, validator.Options{
		MainFlow:  eng.mainFlow,
		Responses: responders.Names(),
		Fallback:  eng.settings.Fallback,
	}); err != nil {
		return nil, err
	}

	classifier := intent.New(
		intent.WithConfig(eng.intentCfg),
		intent.WithStations(railway.Stations...),
	)
	eng.machine, err = runtime.NewMachine(defs, eng.mainFlow, classifier,
		runtime.WithSettings(eng.settings),
		runtime.WithResponses(responders),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithClock(eng.now),
	)
	if err != nil {
		return nil, err
	}

	managerOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.store, managerOpts...)
	eng.streams = newStreamManager(eng.logger)

	eng.logger.Info("Flows loaded", "flows", len(defs), "main_flow", eng.mainFlow)
	return eng, nil
}

// CreateSession starts a call at the main flow's initial state and returns the welcome prompt.
func (e *Engine) CreateSession(ctx context.Context) (*domain.TurnResult, error) {
	id := e.newID()
	state, res, err := e.machine.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Create(ctx, state); err != nil {
		return nil, err
	}

	if e.hooks.OnSessionStart != nil {
		e.hooks.OnSessionStart(ctx, &domain.SessionEvent{
			EventBase: domain.EventBase{Timestamp: state.StartedAt, Type: domain.EventSessionStart, SessionID: id},
			Flow:      state.ActiveFlow,
		})
	}
	e.streams.Broadcast(domain.Diff(nil, state))
	e.logger.Info("Session created", "session_id", id, "state", state.CurrentState)
	return res, nil
}

// Advance feeds one caller input to a session. Unknown ids fail with
// domain.ErrSessionNotFound; sessions are never created implicitly.
// Malformed input is repaired and oversized input counts as a miss, so any
// other session always gets a next prompt.
func (e *Engine) Advance(ctx context.Context, sessionID, raw string, ch domain.Channel) (*domain.TurnResult, error) {
	advance := e.machine.Advance
	clean, err := sanitize.Input(raw, e.maxInput)
	if err != nil {
		// Oversized input is never routed; the caller hears the help prompt instead.
		e.logger.Warn("Input rejected", "session_id", sessionID, "size", len(raw), "err", err)
		advance = e.machine.Miss
	}

	var (
		before *domain.SessionState
		res    *domain.TurnResult
	)
	after, err := e.sessions.Update(ctx, sessionID, func(current *domain.SessionState) (*domain.SessionState, error) {
		before = current
		next, r, err := advance(ctx, current, clean, ch)
		if err != nil {
			return nil, err
		}
		res = r
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	e.streams.Broadcast(domain.Diff(before, after))
	return res, nil
}

// EndSession finalises a call, removes it from the registry and returns its summary.
// The summary is archived when an archive is configured; archive failures are logged.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*domain.Summary, error) {
	state, err := e.sessions.Take(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	summary := e.finish(ctx, state)
	e.logger.Info("Session ended", "session_id", sessionID, "exchanges", summary.TotalExchanges)
	return summary, nil
}

func (e *Engine) finish(ctx context.Context, state *domain.SessionState) *domain.Summary {
	summary := domain.Summarize(state, e.now())
	if e.archive != nil {
		if err := e.archive.Save(ctx, summary); err != nil {
			e.logger.Error("Failed to archive call summary", "session_id", state.SessionID, "err", err)
		}
	}
	if e.hooks.OnSessionEnd != nil {
		e.hooks.OnSessionEnd(ctx, &domain.SessionEvent{
			EventBase: domain.EventBase{Timestamp: summary.EndedAt, Type: domain.EventSessionEnd, SessionID: state.SessionID},
			Flow:      state.ActiveFlow,
			Exchanges: summary.TotalExchanges,
		})
	}
	e.streams.Close(state.SessionID)
	return summary
}

// Session returns the current snapshot of a live call.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	return e.sessions.Load(ctx, sessionID)
}

// ActiveSessions returns the ids of live calls.
func (e *Engine) ActiveSessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// ListFlows describes every loaded flow, sorted by name.
func (e *Engine) ListFlows() []domain.FlowInfo {
	return e.machine.ListFlows()
}

// Flows returns the loaded flow definitions, sorted by name. They must not be modified.
func (e *Engine) Flows() []*domain.FlowDefinition {
	return e.machine.Flows()
}

// MainFlow is the flow calls start in.
func (e *Engine) MainFlow() string {
	return e.mainFlow
}

// Settings returns the dialogue policy in effect.
func (e *Engine) Settings() runtime.Settings {
	return e.machine.Settings()
}

// IdleTimeout is the configured eviction window. Zero disables eviction.
func (e *Engine) IdleTimeout() time.Duration {
	return e.idle
}

// Evict ends every call idle for longer than the idle timeout and returns their summaries.
func (e *Engine) Evict(ctx context.Context) ([]*domain.Summary, error) {
	if e.idle <= 0 {
		return nil, nil
	}
	evicted, err := e.sessions.Evict(ctx, e.now().Add(-e.idle))
	summaries := make([]*domain.Summary, 0, len(evicted))
	for _, state := range evicted {
		summaries = append(summaries, e.finish(ctx, state))
	}
	if len(evicted) > 0 {
		e.logger.Info("Idle sessions evicted", "count", len(evicted))
	}
	return summaries, err
}

// Subscribe streams the changes of one live session. The channel is closed
// when the session ends or cancel is called; callers must always call cancel.
// Unknown sessions fail with domain.ErrSessionNotFound.
func (e *Engine) Subscribe(ctx context.Context, sessionID string) (<-chan *domain.SessionDiff, func(), error) {
	var (
		diffs  <-chan *domain.SessionDiff
		cancel func()
	)
	// The existence check and the registration share the session lock, so an
	// EndSession racing with us either sees the subscriber or fails it here.
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := e.sessions.Store().Load(ctx, sessionID); err != nil {
			return err
		}
		diffs, cancel = e.streams.Subscribe(sessionID)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return diffs, cancel, nil
}

// Archive returns the configured summary archive, or nil.
func (e *Engine) Archive() ports.SummaryArchive {
	return e.archive
}

// Close releases the archive and the session store when they hold resources.
func (e *Engine) Close() error {
	var errs []error
	if e.archive != nil {
		errs = append(errs, e.archive.Close())
	}
	if c, ok := e.store.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
