package middleware

import (
	"context"
	"math"
	"strconv"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/KOMKZ/go-yogan-tokenauth/limiter"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Allower decides whether the client identified by key may proceed
type Allower interface {
	Allow(ctx context.Context, route, key string) (limiter.Decision, error)
}

// RateLimiter throttles matching paths per client ip
type RateLimiter struct {
	allower Allower
	paths   *PathMatcher
	log     *logger.CtxZapLogger
}

// NewRateLimiter limits requests whose path matches one of paths. log may be nil.
func NewRateLimiter(allower Allower, paths []string, log *logger.CtxZapLogger) *RateLimiter {
	if log == nil {
		log = logger.GetLogger("ratelimit")
	}
	return &RateLimiter{
		allower: allower,
		paths:   NewPathMatcher(paths),
		log:     log,
	}
}

// Handler rejects throttled requests with 429 and a Retry-After header.
// A store failure lets the request through.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !r.paths.Match(path) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := path + ":" + c.ClientIP()
		d, err := r.allower.Allow(ctx, path, key)
		if err != nil {
			r.log.WarnCtx(ctx, "rate limiter unavailable, allowing request", zap.String("path", path), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		if d.Allowed {
			c.Next()
			return
		}

		retry := int64(math.Ceil(d.RetryAfter.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retry, 10))
		r.log.InfoCtx(ctx, "request throttled", zap.String("path", path), zap.String("client_ip", c.ClientIP()))
		httpx.Abort(c, autherr.ErrRateLimited.WithData("retryAfter", retry))
	}
}
