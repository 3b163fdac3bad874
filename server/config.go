// Package server assembles the auth service: configuration, dependency graph,
// gin router and HTTP lifecycle.
package server

import (
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/auth"
	"github.com/KOMKZ/go-yogan-tokenauth/config"
	"github.com/KOMKZ/go-yogan-tokenauth/database"
	"github.com/KOMKZ/go-yogan-tokenauth/health"
	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/KOMKZ/go-yogan-tokenauth/limiter"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/middleware"
	"github.com/KOMKZ/go-yogan-tokenauth/redis"
	"github.com/KOMKZ/go-yogan-tokenauth/session"
	"github.com/KOMKZ/go-yogan-tokenauth/telemetry"
	"github.com/KOMKZ/go-yogan-tokenauth/token"
)

// EnvPrefix prefixes generic overrides such as AUTHD_API_SERVER__PORT
const EnvPrefix = "AUTHD"

// EnvBindings are the well-known variables read without the prefix
var EnvBindings = map[string]string{
	"token.secret":                   "JWT_SECRET",
	"token.access_token_expiration":  "JWT_ACCESS_TOKEN_EXPIRATION",
	"token.refresh_token_expiration": "JWT_REFRESH_TOKEN_EXPIRATION",
	"middleware.auth.public_paths":   "AUTH_PUBLIC_PATHS",
}

// Config is the complete service configuration
type Config struct {
	ApiServer  ApiServerConfig          `mapstructure:"api_server"`
	Logger     logger.ManagerConfig     `mapstructure:"logger"`
	Middleware MiddlewareConfig         `mapstructure:"middleware"`
	Httpx      httpx.ErrorLoggingConfig `mapstructure:"httpx"`
	Token      token.Config             `mapstructure:"token"`
	Session    session.Config           `mapstructure:"session"`
	Redis      redis.Config             `mapstructure:"redis"`
	Database   database.Config          `mapstructure:"database"`
	Auth       auth.Config              `mapstructure:"auth"`
	RateLimit  limiter.Config           `mapstructure:"rate_limit"`
	Telemetry  telemetry.Config         `mapstructure:"telemetry"`
	Health     health.Config            `mapstructure:"health"`
}

type ApiServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is host:port for net/http
func (c ApiServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MiddlewareConfig struct {
	Auth       middleware.AuthConfig        `mapstructure:"auth"`
	TraceID    TraceIDConfig                `mapstructure:"trace_id"`
	RequestLog RequestLogConfig             `mapstructure:"request_log"`
	Metrics    middleware.HTTPMetricsConfig `mapstructure:"metrics"`
}

type TraceIDConfig struct {
	Enable               bool   `mapstructure:"enable"`
	TraceIDKey           string `mapstructure:"trace_id_key"`
	TraceIDHeader        string `mapstructure:"trace_id_header"`
	EnableResponseHeader bool   `mapstructure:"enable_response_header"`
}

type RequestLogConfig struct {
	Enable    bool     `mapstructure:"enable"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

var defaultRequestLogSkipPaths = []string{"/api/health/liveness", "/api/health/readiness"}

// DefaultConfig is decoded over by LoadConfig, so booleans set here stay
// true unless a source turns them off. List fields stay nil here: decoding
// into a populated slice overwrites it index by index and keeps the tail,
// so ApplyDefaults fills them only when no source set them.
func DefaultConfig() Config {
	cfg := Config{
		ApiServer: ApiServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logger: logger.DefaultManagerConfig(),
		Middleware: MiddlewareConfig{
			Auth: middleware.AuthConfig{},
			TraceID: TraceIDConfig{
				Enable:               true,
				TraceIDKey:           middleware.TraceIDKeyDefault,
				TraceIDHeader:        middleware.TraceIDHeaderDefault,
				EnableResponseHeader: true,
			},
			RequestLog: RequestLogConfig{Enable: true},
		},
		Httpx:     httpx.DefaultErrorLoggingConfig(),
		Session:   session.Config{Driver: "redis"},
		Redis:     redis.Config{Mode: "standalone", Addr: "localhost:6379"},
		Database:  database.DefaultConfig(),
		RateLimit: limiter.DefaultConfig(),
		Telemetry: telemetry.DefaultConfig(),
		Health:    health.DefaultConfig(),
	}
	cfg.RateLimit.Paths = nil
	cfg.Logger.AppName = "authd"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:authd.db?_busy_timeout=5000"
	cfg.Database.AutoMigrate = true
	return cfg
}

// ApplyDefaults fills zero values of every section
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ApiServer.Port == 0 {
		c.ApiServer.Port = d.ApiServer.Port
	}
	if c.ApiServer.Mode == "" {
		c.ApiServer.Mode = d.ApiServer.Mode
	}
	if c.ApiServer.ShutdownTimeout <= 0 {
		c.ApiServer.ShutdownTimeout = d.ApiServer.ShutdownTimeout
	}
	if c.Middleware.TraceID.TraceIDKey == "" {
		c.Middleware.TraceID.TraceIDKey = d.Middleware.TraceID.TraceIDKey
	}
	if c.Middleware.TraceID.TraceIDHeader == "" {
		c.Middleware.TraceID.TraceIDHeader = d.Middleware.TraceID.TraceIDHeader
	}
	if len(c.Middleware.RequestLog.SkipPaths) == 0 {
		c.Middleware.RequestLog.SkipPaths = append([]string(nil), defaultRequestLogSkipPaths...)
	}
	if c.Health.Timeout <= 0 {
		c.Health.Timeout = d.Health.Timeout
	}

	c.Logger.ApplyDefaults()
	c.Middleware.Auth.ApplyDefaults()
	c.Token.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.RateLimit.ApplyDefaults()
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = c.Session.Driver
	}
	if c.usesRedis() {
		c.Redis.ApplyDefaults()
	}
}

// usesRedis reports whether any enabled component needs the redis client
func (c *Config) usesRedis() bool {
	return c.Session.Driver == "redis" || (c.RateLimit.Enabled && c.RateLimit.Store == limiter.StoreRedis)
}

// Validate checks every section in use
func (c *Config) Validate() error {
	if c.ApiServer.Port < 1 || c.ApiServer.Port > 65535 {
		return fmt.Errorf("api_server: port must be between 1 and 65535, got %d", c.ApiServer.Port)
	}
	switch c.ApiServer.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("api_server: mode must be debug, release or test, got %q", c.ApiServer.Mode)
	}

	validators := []config.Validator{
		c.Logger,
		c.Token,
		c.Session,
		c.Database,
		c.Auth,
		c.RateLimit,
		&c.Telemetry,
	}
	if c.usesRedis() {
		validators = append(validators, &c.Redis)
	}
	return config.ValidateAll(validators...)
}

// LoadConfig decodes loader over DefaultConfig, then defaults and validates
func LoadConfig(loader *config.Loader) (*Config, error) {
	cfg := DefaultConfig()
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c MiddlewareConfig) traceConfig() middleware.TraceConfig {
	tc := middleware.DefaultTraceConfig()
	tc.TraceIDKey = c.TraceID.TraceIDKey
	tc.TraceIDHeader = c.TraceID.TraceIDHeader
	tc.EnableResponseHeader = c.TraceID.EnableResponseHeader
	return tc
}
