package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/techknowlogia/core/internal/config"
	"github.com/techknowlogia/core/internal/database"
	"github.com/techknowlogia/core/internal/middleware"
	authmod "github.com/techknowlogia/core/internal/modules/auth/auth"
	"github.com/techknowlogia/core/internal/modules/content/post"
	"github.com/techknowlogia/core/internal/modules/syndication/subscribe"
	"github.com/techknowlogia/core/internal/modules/system/core/health"
	pkgcron "github.com/techknowlogia/core/internal/pkg/cron"
	"github.com/techknowlogia/core/internal/pkg/jwt"
	pkgmail "github.com/techknowlogia/core/internal/pkg/mail"
	"github.com/techknowlogia/core/internal/pkg/metrics"
	pkgredis "github.com/techknowlogia/core/internal/pkg/redis"
	"github.com/techknowlogia/core/internal/pkg/telemetry"
	"github.com/techknowlogia/core/internal/pkg/token"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// ServiceName identifies this process in health output and traces.
const ServiceName = "techknowlogia-core"

// Version is overridden at build time with -ldflags.
var Version = "dev"

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	logger  *zap.Logger
	cancel  context.CancelFunc
	sched   *pkgcron.Scheduler
	metrics *metrics.Metrics
	tracer  *sdktrace.TracerProvider

	store     subscribe.Store
	pingers   map[string]health.PingFunc
	redis     *pkgredis.Client
	mailer    *pkgmail.Sender
	subscribe *subscribe.Service
	library   *post.Library
	issuer    *jwt.Issuer
	auth      *authmod.Service
	closers   []func(context.Context) error
}

// New initializes the application: store → redis → services → routes → cron.
// Any missing secret fails here rather than on the first request.
func New(ctx context.Context, logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, pingers: map[string]health.PingFunc{}}
	if err := a.init(ctx); err != nil {
		_ = a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.metrics = m

	if cfg.Tracing.Enable {
		tp, err := telemetry.InitTracing(ServiceName, Version, os.Stdout)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		a.tracer = tp
		a.closers = append(a.closers, func(ctx context.Context) error { return telemetry.ShutdownTracing(ctx, tp) })
	}

	if err := a.openStore(ctx); err != nil {
		return err
	}
	a.openRedis(ctx)

	signer, err := token.NewSigner(cfg.Subscribe.TokenSecret)
	if err != nil {
		return fmt.Errorf("subscriber tokens: %w", err)
	}

	a.mailer = pkgmail.New(pkgmail.BuildMailConfig(cfg), pkgmail.WithLogger(logger))
	notifier := subscribe.NewMailNotifier(a.mailer, cfg.Site.Name, m)
	a.subscribe, err = subscribe.NewService(a.store, signer, notifier,
		subscribe.WithLogger(logger),
		subscribe.WithMetrics(m),
		subscribe.WithConfirmTTL(cfg.Subscribe.ConfirmTTL),
		subscribe.WithCooldown(cfg.Subscribe.Cooldown),
		subscribe.WithPurgeAfter(cfg.Subscribe.PurgeAfter),
	)
	if err != nil {
		return fmt.Errorf("subscribe service: %w", err)
	}

	a.library = post.NewLibrary(cfg.ContentDir(), logger)
	if err := a.library.Reload(ctx); err != nil {
		return fmt.Errorf("content: %w", err)
	}

	if cfg.AdminEnabled() {
		a.issuer, err = jwt.NewIssuer(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
		if err != nil {
			return fmt.Errorf("admin tokens: %w", err)
		}
		a.auth, err = authmod.NewService(cfg.Admin.PasswordHash, a.issuer, authmod.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("admin login: %w", err)
		}
	} else {
		logger.Warn("admin.password_hash or admin.jwt_secret is empty, admin API disabled")
	}

	a.router = a.newRouter()

	a.sched = pkgcron.New(logger)
	if err := registerCronJobs(a.sched, a.subscribe, a.library, cfg); err != nil {
		return fmt.Errorf("cron: %w", err)
	}
	a.registerRoutes()

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.sched.Start(runCtx)
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Database.Driver {
	case config.DriverMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.Database.Mongo)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)
		store, err := subscribe.NewMongoStore(ctx, db)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		a.store = store
		a.pingers["database"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	case config.DriverMySQL:
		db, err := database.ConnectMySQL(cfg.Database.MySQL, cfg.IsDev())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return database.CloseMySQL(db) })
		store := subscribe.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		a.store = store
		a.pingers["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	case config.DriverMemory:
		a.logger.Warn("using in-memory subscriber store, data is lost on restart")
		a.store = subscribe.NewMemoryStore()
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	a.logger.Info("subscriber store ready", zap.String("driver", cfg.Database.Driver))
	return nil
}

// openRedis connects the view counter and rate limiter backend. Without
// redis both features are switched off.
func (a *App) openRedis(ctx context.Context) {
	if a.cfg.Redis.URL == "" {
		a.logger.Warn("redis.url is empty, views counted in memory and rate limiting disabled")
		return
	}
	rc, err := pkgredis.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		a.logger.Warn("redis unavailable, views counted in memory and rate limiting disabled", zap.Error(err))
		return
	}
	a.redis = rc
	a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
	a.pingers["redis"] = rc.Ping
}

func (a *App) newRouter() *gin.Engine {
	if a.cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	if a.tracer != nil {
		router.Use(otelgin.Middleware(ServiceName, otelgin.WithTracerProvider(a.tracer)))
	}
	router.Use(middleware.Logger(a.logger, a.metrics))
	router.Use(cors.New(corsConfig(a.cfg)))
	return router
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and releases connections.
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Wait()
	}
	return a.close(ctx)
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
