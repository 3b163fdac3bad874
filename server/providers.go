package server

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-tokenauth/api"
	"github.com/KOMKZ/go-yogan-tokenauth/auth"
	"github.com/KOMKZ/go-yogan-tokenauth/database"
	"github.com/KOMKZ/go-yogan-tokenauth/health"
	"github.com/KOMKZ/go-yogan-tokenauth/limiter"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/middleware"
	"github.com/KOMKZ/go-yogan-tokenauth/profile"
	"github.com/KOMKZ/go-yogan-tokenauth/redis"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
	"github.com/KOMKZ/go-yogan-tokenauth/telemetry"
	"github.com/KOMKZ/go-yogan-tokenauth/token"
	"github.com/KOMKZ/go-yogan-tokenauth/user"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RedisConn lets the injector close the client on shutdown
type RedisConn struct {
	goredis.UniversalClient
}

func (c *RedisConn) Shutdown() error {
	return c.Close()
}

type metricsRegistrar interface {
	RegisterMetrics(meter metric.Meter) error
}

// Register wires every service of the auth server into the injector.
// Services are built lazily on first Invoke.
func Register(i do.Injector, cfg *Config) {
	do.ProvideValue(i, cfg)

	do.Provide(i, provideTelemetry)
	do.Provide(i, provideRedis)
	do.Provide(i, provideStore)
	do.Provide(i, provideDatabase)
	do.Provide(i, provideUserRepository)

	do.Provide(i, provideTokenMetrics)
	do.Provide(i, provideAuthMetrics)
	do.Provide(i, provideRedisMetrics)
	do.Provide(i, provideHTTPMetrics)
	do.Provide(i, provideLimiterMetrics)
	do.Provide(i, provideProfileMetrics)

	do.Provide(i, provideCodec)
	do.Provide(i, providePasswords)
	do.Provide(i, provideAuthService)
	do.Provide(i, provideProfiles)
	do.Provide(i, provideAccounts)
	do.Provide(i, provideHealth)
	do.Provide(i, provideAuthenticator)
	do.Provide(i, provideLimiter)
	do.Provide(i, provideRateLimiter)
	do.Provide(i, provideHandler)
	do.Provide(i, provideRouter)
	do.Provide(i, provideHTTPServer)
}

func provideTelemetry(i do.Injector) (*telemetry.Manager, error) {
	cfg := do.MustInvoke[*Config](i)
	m := telemetry.NewManager(cfg.Telemetry, logger.GetLogger("telemetry"), telemetry.WithGlobal())
	if err := m.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start telemetry: %w", err)
	}
	return m, nil
}

// registerMetrics attaches r to the process meter when metrics are exported
func registerMetrics(i do.Injector, name string, r metricsRegistrar) error {
	tm, err := do.Invoke[*telemetry.Manager](i)
	if err != nil {
		return err
	}
	if !tm.MetricsEnabled() {
		return nil
	}
	if err := r.RegisterMetrics(tm.Meter(name)); err != nil {
		return fmt.Errorf("register %s metrics: %w", name, err)
	}
	return nil
}

func provideTokenMetrics(i do.Injector) (*token.Metrics, error) {
	m := token.NewMetrics()
	return m, registerMetrics(i, "token", m)
}

func provideAuthMetrics(i do.Injector) (*auth.Metrics, error) {
	m := auth.NewMetrics()
	return m, registerMetrics(i, "auth", m)
}

func provideRedisMetrics(i do.Injector) (*redis.Metrics, error) {
	m := redis.NewMetrics()
	return m, registerMetrics(i, "redis", m)
}

func provideHTTPMetrics(i do.Injector) (*middleware.HTTPMetrics, error) {
	cfg := do.MustInvoke[*Config](i)
	m := middleware.NewHTTPMetrics(cfg.Middleware.Metrics)
	if !m.IsMetricsEnabled() {
		return m, nil
	}
	return m, registerMetrics(i, "http", m)
}

func provideLimiterMetrics(i do.Injector) (*limiter.Metrics, error) {
	m := limiter.NewMetrics()
	return m, registerMetrics(i, "ratelimit", m)
}

func provideProfileMetrics(i do.Injector) (*profile.Metrics, error) {
	m := profile.NewMetrics()
	return m, registerMetrics(i, "profile", m)
}

func provideRedis(i do.Injector) (*RedisConn, error) {
	cfg := do.MustInvoke[*Config](i)
	metrics, err := do.Invoke[*redis.Metrics](i)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+cfg.Redis.ReadTimeout)
	defer cancel()

	client, err := redis.Open(ctx, cfg.Redis, metrics, logger.GetLogger("redis"))
	if err != nil {
		return nil, err
	}
	return &RedisConn{UniversalClient: client}, nil
}

func provideStore(i do.Injector) (session.Store, error) {
	cfg := do.MustInvoke[*Config](i)
	if cfg.Session.Driver == "memory" {
		logger.GetLogger("session").Warn("using in-process session store, sessions are lost on restart")
		return session.NewMemoryStore(cfg.Session), nil
	}

	conn, err := do.Invoke[*RedisConn](i)
	if err != nil {
		return nil, err
	}
	return session.NewRedisStore(conn.UniversalClient, cfg.Session, logger.GetLogger("session")), nil
}

func provideDatabase(i do.Injector) (*database.Manager, error) {
	cfg := do.MustInvoke[*Config](i)
	tm, err := do.Invoke[*telemetry.Manager](i)
	if err != nil {
		return nil, err
	}
	return database.Open(cfg.Database, logger.GetLogger("database"), tm.TracerProvider())
}

func provideUserRepository(i do.Injector) (*user.Repository, error) {
	cfg := do.MustInvoke[*Config](i)
	db, err := do.Invoke[*database.Manager](i)
	if err != nil {
		return nil, err
	}

	repo := user.NewRepository(db.DB())
	if cfg.Database.AutoMigrate {
		if err := repo.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("migrate users: %w", err)
		}
	}
	return repo, nil
}

func provideCodec(i do.Injector) (*token.Codec, error) {
	cfg := do.MustInvoke[*Config](i)
	metrics, err := do.Invoke[*token.Metrics](i)
	if err != nil {
		return nil, err
	}
	return token.NewCodec(cfg.Token, token.WithMetrics(metrics), token.WithLogger(logger.GetLogger("token")))
}

func providePasswords(i do.Injector) (*auth.PasswordService, error) {
	cfg := do.MustInvoke[*Config](i)
	return auth.NewPasswordService(cfg.Auth.Password), nil
}

func provideAuthService(i do.Injector) (*auth.Service, error) {
	cfg := do.MustInvoke[*Config](i)
	users, err := do.Invoke[*user.Repository](i)
	if err != nil {
		return nil, err
	}
	codec, err := do.Invoke[*token.Codec](i)
	if err != nil {
		return nil, err
	}
	store, err := do.Invoke[session.Store](i)
	if err != nil {
		return nil, err
	}
	metrics, err := do.Invoke[*auth.Metrics](i)
	if err != nil {
		return nil, err
	}
	return auth.NewService(cfg.Auth, users, do.MustInvoke[*auth.PasswordService](i), codec, store, metrics,
		logger.GetLogger("auth")), nil
}

func provideProfiles(i do.Injector) (*profile.Service, error) {
	cfg := do.MustInvoke[*Config](i)
	store, err := do.Invoke[session.Store](i)
	if err != nil {
		return nil, err
	}
	users, err := do.Invoke[*user.Repository](i)
	if err != nil {
		return nil, err
	}
	metrics, err := do.Invoke[*profile.Metrics](i)
	if err != nil {
		return nil, err
	}
	return profile.NewService(store, users, cfg.Session.ProfileTTL, logger.GetLogger("profile"),
		profile.WithMetrics(metrics)), nil
}

func provideAccounts(i do.Injector) (*user.AccountService, error) {
	users, err := do.Invoke[*user.Repository](i)
	if err != nil {
		return nil, err
	}
	svc, err := do.Invoke[*auth.Service](i)
	if err != nil {
		return nil, err
	}
	profiles, err := do.Invoke[*profile.Service](i)
	if err != nil {
		return nil, err
	}
	return user.NewAccountService(users, do.MustInvoke[*auth.PasswordService](i), svc, profiles,
		logger.GetLogger("user")), nil
}

func provideHealth(i do.Injector) (*health.Aggregator, error) {
	cfg := do.MustInvoke[*Config](i)
	agg := health.NewAggregator(cfg.Health.Timeout)
	agg.SetMetadata("service", cfg.Telemetry.ServiceName)
	agg.SetMetadata("session_driver", cfg.Session.Driver)

	db, err := do.Invoke[*database.Manager](i)
	if err != nil {
		return nil, err
	}
	agg.Register(database.NewHealthChecker(db))

	if cfg.usesRedis() {
		conn, err := do.Invoke[*RedisConn](i)
		if err != nil {
			return nil, err
		}
		agg.Register(redis.NewHealthChecker(conn.UniversalClient))
	}
	return agg, nil
}

func provideAuthenticator(i do.Injector) (*middleware.Authenticator, error) {
	cfg := do.MustInvoke[*Config](i)
	codec, err := do.Invoke[*token.Codec](i)
	if err != nil {
		return nil, err
	}
	store, err := do.Invoke[session.Store](i)
	if err != nil {
		return nil, err
	}
	return middleware.NewAuthenticator(codec, store, cfg.Middleware.Auth, logger.GetLogger("auth")), nil
}

func provideLimiter(i do.Injector) (*limiter.Limiter, error) {
	cfg := do.MustInvoke[*Config](i)
	metrics, err := do.Invoke[*limiter.Metrics](i)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if cfg.RateLimit.Store == limiter.StoreRedis {
		conn, err := do.Invoke[*RedisConn](i)
		if err != nil {
			return nil, err
		}
		store = limiter.NewRedisStore(conn.UniversalClient)
	} else {
		store = limiter.NewMemoryStore()
	}
	return limiter.New(store, cfg.RateLimit, limiter.WithMetrics(metrics)), nil
}

func provideRateLimiter(i do.Injector) (*middleware.RateLimiter, error) {
	cfg := do.MustInvoke[*Config](i)
	l, err := do.Invoke[*limiter.Limiter](i)
	if err != nil {
		return nil, err
	}
	return middleware.NewRateLimiter(l, cfg.RateLimit.Paths, logger.GetLogger("ratelimit")), nil
}

func provideHandler(i do.Injector) (*api.Handler, error) {
	svc, err := do.Invoke[*auth.Service](i)
	if err != nil {
		return nil, err
	}
	profiles, err := do.Invoke[*profile.Service](i)
	if err != nil {
		return nil, err
	}
	accounts, err := do.Invoke[*user.AccountService](i)
	if err != nil {
		return nil, err
	}
	return api.NewHandler(svc, profiles, accounts, logger.GetLogger("api")), nil
}

func provideRouter(i do.Injector) (*gin.Engine, error) {
	deps := RouterDeps{Config: do.MustInvoke[*Config](i)}
	var err error
	if deps.Telemetry, err = do.Invoke[*telemetry.Manager](i); err != nil {
		return nil, err
	}
	if deps.Metrics, err = do.Invoke[*middleware.HTTPMetrics](i); err != nil {
		return nil, err
	}
	if deps.Authenticator, err = do.Invoke[*middleware.Authenticator](i); err != nil {
		return nil, err
	}
	if deps.Config.RateLimit.Enabled {
		if deps.RateLimiter, err = do.Invoke[*middleware.RateLimiter](i); err != nil {
			return nil, err
		}
	}
	if deps.Handler, err = do.Invoke[*api.Handler](i); err != nil {
		return nil, err
	}
	if deps.Health, err = do.Invoke[*health.Aggregator](i); err != nil {
		return nil, err
	}
	return NewRouter(deps), nil
}

func provideHTTPServer(i do.Injector) (*HTTPServer, error) {
	cfg := do.MustInvoke[*Config](i)
	engine, err := do.Invoke[*gin.Engine](i)
	if err != nil {
		return nil, err
	}
	logger.GetLogger("server").Debug("http server prepared", zap.String("addr", cfg.ApiServer.Addr()))
	return NewHTTPServer(cfg.ApiServer, engine), nil
}
