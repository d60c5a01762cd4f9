package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/praveen131106/ivr-modern"
	"github.com/praveen131106/ivr-modern/internal/config"
	"github.com/praveen131106/ivr-modern/pkg/adapters/archive"
	"github.com/praveen131106/ivr-modern/pkg/adapters/file"
	"github.com/praveen131106/ivr-modern/pkg/adapters/memory"
	"github.com/praveen131106/ivr-modern/pkg/adapters/redis"
	"github.com/praveen131106/ivr-modern/pkg/domain"
	"github.com/praveen131106/ivr-modern/pkg/observability"
	"github.com/praveen131106/ivr-modern/pkg/persistence/middleware"
	"github.com/praveen131106/ivr-modern/pkg/ports"
)

// EngineOptions carries the process collaborators that do not come from configuration.
type EngineOptions struct {
	Logger *slog.Logger
	// Registerer receives the IVR collectors. Nil disables metrics.
	Registerer prometheus.Registerer
	// Debug logs every state transition and turn.
	Debug bool
	Extra []ivr.Option
}

// NewEngine initializes an IVR engine from the configuration.
func NewEngine(ctx context.Context, cfg *config.Config, opts EngineOptions) (*ivr.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, locker, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	engineOpts := []ivr.Option{
		ivr.WithLogger(logger),
		ivr.WithStore(store),
		ivr.WithMainFlow(cfg.MainFlow),
		ivr.WithSettings(cfg.Dialogue),
		ivr.WithIntentConfig(cfg.Intent),
		ivr.WithMaxInputSize(cfg.MaxInputSize),
		ivr.WithIdleTimeout(cfg.IdleTimeout),
	}
	if locker != nil {
		engineOpts = append(engineOpts, ivr.WithLocker(locker))
	}
	if opts.Registerer != nil {
		engineOpts = append(engineOpts, ivr.WithLifecycleHooks(observability.NewMetrics(opts.Registerer).Hooks()))
	}
	if opts.Debug {
		engineOpts = append(engineOpts, ivr.WithLifecycleHooks(debugHooks(logger)))
	}

	if cfg.Archive.Driver != config.ArchiveNone {
		a, err := archive.Open(ctx, cfg.Archive.Driver, cfg.Archive.DSN, archive.WithLogger(logger))
		if err != nil {
			closeQuietly(store)
			return nil, err
		}
		var sink ports.SummaryArchive = a
		if len(cfg.Archive.MaskFields) > 0 {
			sink = middleware.NewPIIMiddleware(cfg.Archive.MaskFields)(a)
		}
		engineOpts = append(engineOpts, ivr.WithArchive(sink))
	}

	engineOpts = append(engineOpts, opts.Extra...)
	engine, err := ivr.New(cfg.FlowsDir, engineOpts...)
	if err != nil {
		closeQuietly(store)
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// OpenStore builds the session store named by the configuration, sealed when
// an encryption key is set. The locker is only returned for shared stores.
func OpenStore(cfg *config.Config) (ports.SessionStore, ports.DistributedLocker, error) {
	var (
		store  ports.SessionStore
		locker ports.DistributedLocker
	)
	switch cfg.Store.Driver {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Store.Dir)
	case config.StoreRedis:
		rs := redis.New(cfg.Store.RedisAddr, "", 0,
			redis.WithPrefix(cfg.Store.RedisPrefix),
			redis.WithTTL(cfg.Store.TTL),
		)
		store = rs
		locker = redis.NewLocker(rs.Client(), cfg.Store.RedisPrefix+"lock:")
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.Store.EncryptionKey)
		if err != nil {
			closeQuietly(store)
			return nil, nil, err
		}
		sealed := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(store)
		if c, ok := store.(io.Closer); ok {
			sealed = closingStore{SessionStore: sealed, closer: c}
		}
		store = sealed
	}
	return store, locker, nil
}

// closingStore keeps the backend closable behind a middleware.
type closingStore struct {
	ports.SessionStore
	closer io.Closer
}

func (s closingStore) Close() error {
	return s.closer.Close()
}

func closeQuietly(store ports.SessionStore) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateEnter: func(ctx context.Context, e *domain.StateEvent) {
			logger.Debug("Enter State", "session_id", e.SessionID, "flow", e.Flow, "state", e.State)
		},
		OnStateLeave: func(ctx context.Context, e *domain.StateEvent) {
			logger.Debug("Leave State", "session_id", e.SessionID, "flow", e.Flow, "state", e.State)
		},
		OnTurn: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("Turn", "session_id", e.SessionID, "channel", e.Channel,
				"outcome", e.Outcome, "option", e.MatchedOption, "confidence", e.Confidence)
		},
		OnFallback: func(ctx context.Context, e *domain.StateEvent) {
			logger.Debug("Fallback", "session_id", e.SessionID, "flow", e.Flow, "state", e.State)
		},
	}
}
