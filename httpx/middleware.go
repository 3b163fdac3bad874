package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const errorPolicyKey = "httpx.errorPolicy"

// errorPolicy is ErrorLoggingConfig resolved once per engine
type errorPolicy struct {
	logRejections bool
	ignored       map[int]struct{}
	withCause     bool
	warn          bool
}

var defaultPolicy = newErrorPolicy(DefaultErrorLoggingConfig())

func newErrorPolicy(cfg ErrorLoggingConfig) *errorPolicy {
	p := &errorPolicy{
		logRejections: cfg.Enable,
		ignored:       make(map[int]struct{}, len(cfg.IgnoreHTTPStatus)),
		withCause:     cfg.FullErrorChain,
		warn:          cfg.LogLevel == "warn",
	}
	for _, status := range cfg.IgnoreHTTPStatus {
		p.ignored[status] = struct{}{}
	}
	return p
}

// shouldLog reports whether a response with status is logged.
// Server faults are logged even when rejections are not.
func (p *errorPolicy) shouldLog(status int) bool {
	if _, skip := p.ignored[status]; skip {
		return false
	}
	return p.logRejections || status >= http.StatusInternalServerError
}

// ErrorLoggingMiddleware attaches cfg to each request for HandleError and Abort
func ErrorLoggingMiddleware(cfg ErrorLoggingConfig) gin.HandlerFunc {
	policy := newErrorPolicy(cfg)
	return func(c *gin.Context) {
		c.Set(errorPolicyKey, policy)
		c.Next()
	}
}

func policyFrom(c *gin.Context) *errorPolicy {
	if p, ok := c.Value(errorPolicyKey).(*errorPolicy); ok {
		return p
	}
	return defaultPolicy
}
