package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"admin-bff/internal/audit"
	"admin-bff/internal/cache"
	"admin-bff/internal/claims"
	"admin-bff/internal/client"
	"admin-bff/internal/config"
	"admin-bff/internal/csrf"
	"admin-bff/internal/events"
	"admin-bff/internal/handler"
	"admin-bff/internal/health"
	"admin-bff/internal/metrics"
	"admin-bff/internal/middleware"
	"admin-bff/internal/routes"
	"admin-bff/internal/service"
	"admin-bff/internal/tracing"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// replicaID tags invalidation events published by this process.
type replicaID string

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("admin-bff"),
		kong.Description("Backend-for-frontend for the multi-tenant admin portal."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			func() replicaID { return replicaID(uuid.NewString()) },
			config.Load,
			newLogger,
			metrics.New,
			newCSRFManager,
			newEcho,
			newRouteTable,
			client.NewBackendClient,
			claims.NewExtractor,
			newCache,
			newAuditRecorder,
			newPoller,
			newExecutor,
			handler.NewRouteHandler,
			handler.NewHealthHandler,
			handler.NewCSRFHandler,
			handler.NewAuthProxy,
		),
		fx.Invoke(
			warnConfigPermissions,
			startTracing,
			wireEvents,
			handler.RegisterRoutes,
			registerMetrics,
			startServer,
		),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h).With("service", tracing.ServiceName)
}

func newCSRFManager(cfg *config.Config) *csrf.Manager {
	return csrf.NewManager(&cfg.CSRF)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, mgr *csrf.Manager) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewErrorHandler(logger)

	// Inbound timeouts to mitigate slow-client attacks. Upstream calls carry
	// their own deadlines.
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 60 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.ServerSpan())
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m))
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.NoStoreByDefault())

	if cfg.CSRF.Disabled {
		logger.Warn("csrf protection disabled")
	} else {
		e.Use(middleware.CSRFProtect(mgr))
	}

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Server.RateLimit))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

// newRouteTable returns the route table after checking it against the
// known backend services.
func newRouteTable() (routes.Table, error) {
	t := routes.Default()
	err := t.Check(func(name string) bool {
		_, ok := config.ServiceEnvVar(name)
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("route table: %w", err)
	}
	return t, nil
}

// newCache builds the response cache, backed by Redis when configured.
func newCache(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*cache.Cache, error) {
	if cfg.Cache.RedisURL == "" {
		logger.Info("redis not configured, using process-local cache")
		return cache.New(cfg, nil, logger, m), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := cache.NewRedisStore(ctx, cfg.Cache.RedisURL, cfg.Cache.PoolSize)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	logger.Info("redis cache connected")
	return cache.New(cfg, store, logger, m), nil
}

// newAuditRecorder connects the audit database, or returns a no-op
// recorder when none is configured.
func newAuditRecorder(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (audit.Recorder, error) {
	if cfg.Audit.DatabaseURL == "" {
		logger.Info("audit database not configured, audit trail disabled")
		return audit.Nop{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := audit.Connect(ctx, cfg.Audit.DatabaseURL, cfg.Audit.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	if err := audit.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: %w", err)
	}

	rec := audit.NewPGRecorder(pool, logger, m)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			rec.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			rec.Stop()
			pool.Close()
			return nil
		},
	})
	return rec, nil
}

func newPoller(lc fx.Lifecycle, cfg *config.Config, bc *client.BackendClient, logger *slog.Logger, m *metrics.Metrics) *health.Poller {
	p := health.NewPoller(cfg, bc, bc.Breakers().State, logger, m)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return p.Start(ctx) },
		OnStop: func(context.Context) error {
			cancel()
			p.Stop()
			return nil
		},
	})
	return p
}

func newExecutor(
	cfg *config.Config,
	x *claims.Extractor,
	bc *client.BackendClient,
	c *cache.Cache,
	rec audit.Recorder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *service.Executor {
	return service.NewExecutor(cfg, x, bc, c, rec, logger, m)
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startTracing(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) {
	var tp *tracing.Provider
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p, err := tracing.Init(ctx, &cfg.Tracing, version)
			if err != nil {
				return fmt.Errorf("tracing: %w", err)
			}
			tp = p
			if p != nil {
				logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
}

// wireEvents connects cross-replica cache invalidation when a broker is
// configured.
func wireEvents(lc fx.Lifecycle, cfg *config.Config, c *cache.Cache, id replicaID, logger *slog.Logger, m *metrics.Metrics) {
	if cfg.Events.AMQPURL == "" {
		logger.Info("amqp not configured, cache invalidation stays local")
		return
	}

	pub := events.NewPublisher(cfg, string(id), logger, m)
	c.SetNotifier(pub)
	consumer := events.NewConsumer(cfg, string(id), c.DropLocal, logger, m)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			pub.Start()
			consumer.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			consumer.Stop()
			return pub.Stop(ctx)
		},
	})
}

func registerMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "version", version)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
