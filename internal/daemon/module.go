package daemon

import (
	"context"
	"time"

	"github.com/matheus3301/crewchat/internal/api"
	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/config"
	"github.com/matheus3301/crewchat/internal/crew"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/gateway"
	"github.com/matheus3301/crewchat/internal/identity"
	"github.com/matheus3301/crewchat/internal/lock"
	"github.com/matheus3301/crewchat/internal/logging"
	"github.com/matheus3301/crewchat/internal/messaging"
	"github.com/matheus3301/crewchat/internal/metrics"
	"github.com/matheus3301/crewchat/internal/presence"
	"github.com/matheus3301/crewchat/internal/session"
	"github.com/matheus3301/crewchat/internal/status"
	"github.com/matheus3301/crewchat/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// HealthInterval is how often the presence backend is probed.
	HealthInterval = 30 * time.Second
	// DrainTimeout bounds how long shutdown waits for open gRPC calls.
	DrainTimeout = 3 * time.Second
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // nil = load ~/.crewchat/config.toml or defaults
	Console     bool           // also log to stderr
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTokens,
			providePresenceBackend,
			provideTracker,
			provideMetrics,
			provideMessagingClient,
			provideDirectory,
			provideSessionService,
			provideMessagingService,
			providePresenceService,
			NewServer,
			provideGateway,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(p.SessionName, logging.Options{
		Path:    session.LogPath(p.SessionName),
		Level:   cfg.Log.Level,
		Console: p.Console,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so the database is only opened by the
// process owning the session.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokens(p Params, cfg *config.Config, _ *lock.Lock) (*identity.TokenService, error) {
	secret := cfg.Gateway.JWTSecret
	if secret == "" {
		var err error
		if secret, err = session.EnsureSecret(p.SessionName); err != nil {
			return nil, err
		}
	}
	return identity.NewTokenService(secret, cfg.Gateway.TokenTTL.Duration), nil
}

func providePresenceBackend(lc fx.Lifecycle, cfg *config.Config, db *store.DB, logger *zap.Logger) (presence.Backend, error) {
	if cfg.Presence.Backend != config.BackendRedis {
		return db, nil
	}
	rb, err := presence.NewRedisBackend(presence.RedisConfig{
		Address:  cfg.Presence.RedisAddr,
		Password: cfg.Presence.RedisPassword,
		DB:       cfg.Presence.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("presence backend: redis", zap.String("addr", cfg.Presence.RedisAddr))
	lc.Append(fx.StopHook(rb.Close))
	return rb, nil
}

func provideTracker(backend presence.Backend, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *presence.Tracker {
	return presence.NewTracker(backend, b, logger.Named("presence"), cfg.Presence.StaleAfter.Duration)
}

func provideMetrics(b *bus.Bus) *metrics.Metrics {
	return metrics.New(b)
}

func provideMessagingClient(db *store.DB, b *bus.Bus, logger *zap.Logger, cfg *config.Config, m *metrics.Metrics) *messaging.Client {
	return messaging.NewClient(db, b, logger.Named("messaging"), messaging.Config{
		DeliveryTimeout: cfg.Messaging.DeliveryTimeout.Duration,
		MaxInFlight:     cfg.Messaging.MaxInFlight,
		HistoryLimit:    cfg.Messaging.HistoryLimit,
	}, messaging.WithObserver(m))
}

func provideDirectory(db *store.DB, tokens *identity.TokenService, logger *zap.Logger) *crew.Directory {
	return crew.NewDirectory(db, tokens, logger.Named("crew"))
}

func provideSessionService(p Params, m *status.Machine, db *store.DB, gw *gateway.Server) *api.SessionService {
	var addr string
	if gw != nil {
		addr = gw.Addr()
	}
	return api.NewSessionService(p.SessionName, m, db, addr)
}

func provideMessagingService(client *messaging.Client, directory *crew.Directory, db *store.DB, logger *zap.Logger) *api.MessagingService {
	return api.NewMessagingService(client, directory, db, logger.Named("api"))
}

func providePresenceService(tracker *presence.Tracker, directory *crew.Directory) *api.PresenceService {
	return api.NewPresenceService(tracker, directory)
}

// provideGateway returns nil when the gateway is disabled.
func provideGateway(
	cfg *config.Config,
	client *messaging.Client,
	directory *crew.Directory,
	db *store.DB,
	tracker *presence.Tracker,
	tokens *identity.TokenService,
	machine *status.Machine,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*gateway.Server, error) {
	if !cfg.Gateway.Enabled {
		return nil, nil
	}
	router := gateway.NewRouter(gateway.Deps{
		Client:    client,
		Directory: directory,
		DB:        db,
		Tracker:   tracker,
		Tokens:    tokens,
		Machine:   machine,
		Metrics:   m.Handler(),
		Logger:    logger.Named("gateway"),
	}, gateway.Options{
		CORSOrigins: cfg.Gateway.CORSOrigins,
		Feed: feed.Options{
			GroupGap:     cfg.Feed.GroupGap.Duration,
			SeparatorGap: cfg.Feed.SeparatorGap.Duration,
		},
	})
	return gateway.NewServer(cfg.Gateway.Addr, router, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	gw *gateway.Server,
	lk *lock.Lock,
	db *store.DB,
	client *messaging.Client,
	directory *crew.Directory,
	tracker *presence.Tracker,
	machine *status.Machine,
	logger *zap.Logger,
) {
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	monitorDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := directory.EnsureGlobal(ctx); err != nil {
				_ = machine.TransitionWithReason(status.Error, err.Error())
				return err
			}

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if gw != nil {
				go func() {
					if err := gw.Start(); err != nil {
						logger.Error("HTTP gateway error", zap.Error(err))
					}
				}()
			}

			checkHealth(ctx, tracker, machine, logger)
			go func() {
				defer close(monitorDone)
				monitorHealth(monitorCtx, tracker, machine, logger, HealthInterval)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Stopping)
			stopMonitor()
			<-monitorDone
			if gw != nil {
				gw.Stop(ctx)
			}
			drainCtx, cancelDrain := context.WithTimeout(ctx, DrainTimeout)
			srv.Stop(drainCtx)
			cancelDrain()
			client.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}

// checkHealth moves the daemon to READY when the presence backend answers
// and to DEGRADED when it does not. Messaging keeps working while degraded.
func checkHealth(ctx context.Context, tracker *presence.Tracker, machine *status.Machine, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	current := machine.Current()
	if current == status.Stopping {
		return
	}
	if err := tracker.Check(ctx); err != nil {
		if current != status.Degraded {
			logger.Warn("presence backend unhealthy", zap.Error(err))
		}
		if current == status.Booting {
			_ = machine.Transition(status.Ready)
		}
		_ = machine.TransitionWithReason(status.Degraded, "presence backend: "+err.Error())
		return
	}
	if current != status.Ready {
		logger.Info("daemon ready")
	}
	_ = machine.Transition(status.Ready)
}

func monitorHealth(ctx context.Context, tracker *presence.Tracker, machine *status.Machine, logger *zap.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			checkHealth(ctx, tracker, machine, logger)
		case <-ctx.Done():
			return
		}
	}
}
