package console

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppdesk/internal/backend"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/conversation"
	"github.com/matheus3301/wppdesk/internal/logging"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/profile"
	"github.com/matheus3301/wppdesk/internal/roster"
	"github.com/matheus3301/wppdesk/internal/router"
	"github.com/matheus3301/wppdesk/internal/ws"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx modules.
type Params struct {
	Profile string
	// Config overrides the profile's config files. Nil loads them.
	Config *config.Config
	// LogConsole adds a stderr core to the file logger.
	LogConsole bool
}

// Module returns the fx module for the interactive console: the connection,
// both projections and the send path, started on mount and torn down on
// unmount. It holds the profile lock for its lifetime.
func Module(p Params) fx.Option {
	return fx.Module("console",
		fx.Supply(p),
		transport,
		fx.Provide(
			provideLock,
			provideRoster,
			provideSender,
			provideView,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Headless returns the connection without projections or the profile lock,
// for commands that only stream notifications.
func Headless(p Params) fx.Option {
	return fx.Module("headless",
		fx.Supply(p),
		transport,
		fx.Invoke(registerConnection),
	)
}

var transport = fx.Options(
	fx.Provide(
		provideConfig,
		provideLogger,
		provideBus,
		provideBackend,
		provideRouter,
		provideManager,
	),
	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	}),
)

func provideConfig(p Params) (*config.Config, error) {
	cfg := p.Config
	if cfg == nil {
		var err error
		if cfg, err = profile.LoadConfig(p.Profile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.Profile, err)
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Path:    profile.LogPath(p.Profile),
		Level:   cfg.Log.Level,
		Console: p.LogConsole,
		Profile: p.Profile,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*profile.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := profile.Acquire(profile.LockPath(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideBackend(cfg *config.Config, logger *zap.Logger) *backend.Client {
	return backend.New(cfg.Backend.BaseURL, cfg.Backend.APIKey, nil, logger)
}

func provideRouter(b *bus.Bus, logger *zap.Logger) *router.Router {
	return router.New(b, logger)
}

func provideManager(cfg *config.Config, r *router.Router, b *bus.Bus, logger *zap.Logger) (*ws.Manager, error) {
	url, err := cfg.WebSocketURL()
	if err != nil {
		return nil, err
	}
	dialer := &ws.GorillaDialer{Header: backend.AuthHeader(cfg.Backend.APIKey)}
	conn := cfg.Connection
	return ws.NewManager(ws.Options{
		URL:               url,
		HeartbeatInterval: conn.HeartbeatInterval.Duration,
		WatchdogTimeout:   conn.WatchdogTimeout.Duration,
		MaxAttempts:       conn.MaxReconnectAttempts,
		BaseDelay:         conn.BaseBackoff.Duration,
		MaxDelay:          conn.MaxBackoff.Duration,
	}, dialer, r, b, logger), nil
}

func provideRoster(c *backend.Client, b *bus.Bus, logger *zap.Logger) *roster.Projection {
	return roster.New(c, b, logger)
}

func provideSender(c *backend.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(c, b, logger)
}

func provideView(r *roster.Projection, s *outbox.Sender, c *backend.Client, b *bus.Bus, logger *zap.Logger) *conversation.View {
	return conversation.New(r, s, c, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *profile.Lock, m *ws.Manager, r *roster.Projection, v *conversation.View, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Both consumers subscribe before the first frame can arrive.
			r.Start(context.Background())
			v.Start(context.Background())

			// A failed load leaves an empty roster with the error on
			// display; the live connection still comes up.
			if err := r.Load(ctx); err != nil {
				logger.Error("initial roster load failed", zap.Error(err))
			}
			if err := m.Connect(ctx); err != nil {
				logger.Warn("initial connect failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			m.Disconnect()
			v.Stop()
			r.Stop()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("console stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

func registerConnection(lc fx.Lifecycle, m *ws.Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := m.Connect(ctx); err != nil {
				logger.Warn("initial connect failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			m.Disconnect()
			_ = logger.Sync()
			return nil
		},
	})
}
