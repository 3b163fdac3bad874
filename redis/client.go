// Package redis opens the Redis client used by the session store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/retry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Open builds a standalone or cluster client, attaches metrics when given and
// pings it up to ConnectAttempts times
func Open(ctx context.Context, cfg Config, metrics *Metrics, log *logger.CtxZapLogger) (redis.UniversalClient, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}
	if log == nil {
		log = logger.GetLogger("redis")
	}

	opts := &redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Password:     cfg.Password,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	var client redis.UniversalClient
	if cfg.Mode == "cluster" {
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		opts.Addrs = cfg.Addrs[:1]
		opts.DB = cfg.DB
		client = redis.NewClient(opts.Simple())
	}

	if metrics != nil {
		client.AddHook(NewMetricsHook(metrics))
	}

	err := retry.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	},
		retry.Attempts(cfg.ConnectAttempts),
		retry.WithBackoff(retry.Exponential(cfg.ConnectBackoff, 5*time.Second, 0.2)),
		retry.OnRetry(func(attempt int, err error) {
			log.WarnCtx(ctx, "redis ping failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.InfoCtx(ctx, "redis connected",
		zap.String("mode", cfg.Mode),
		zap.Strings("addrs", cfg.Addrs),
	)
	return client, nil
}
