package middleware

import (
	"context"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/httpx"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/KOMKZ/go-yogan-tokenauth/token"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Verifier checks a credential's signature and expiry
type Verifier interface {
	Verify(ctx context.Context, tok string) (*token.Claims, error)
}

// BlacklistChecker reports whether an access credential was revoked
type BlacklistChecker interface {
	IsBlacklisted(ctx context.Context, access string) (bool, error)
}

// AuthState is the terminal state of a request in Authenticate
type AuthState int

const (
	// StateAnonymous continues without an identity
	StateAnonymous AuthState = iota
	// StateAuthenticated continues with an identity attached
	StateAuthenticated
	// StateRejected stops the chain with an error response
	StateRejected
)

func (s AuthState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// AuthConfig configures Authenticate
type AuthConfig struct {
	// PublicPaths never inspect credentials, see PathMatcher for the pattern forms
	PublicPaths []string `mapstructure:"public_paths"`
}

// DefaultAuthConfig uses DefaultPublicPaths
func DefaultAuthConfig() AuthConfig {
	paths := make([]string, len(DefaultPublicPaths))
	copy(paths, DefaultPublicPaths)
	return AuthConfig{PublicPaths: paths}
}

// ApplyDefaults fills an empty allowlist
func (c *AuthConfig) ApplyDefaults() {
	if len(c.PublicPaths) == 0 {
		c.PublicPaths = DefaultAuthConfig().PublicPaths
	}
}

// Authenticator resolves the identity of a request
type Authenticator struct {
	verifier  Verifier
	blacklist BlacklistChecker
	public    *PathMatcher
	log       *logger.CtxZapLogger
}

// NewAuthenticator builds an Authenticator. log may be nil.
func NewAuthenticator(verifier Verifier, blacklist BlacklistChecker, cfg AuthConfig, log *logger.CtxZapLogger) *Authenticator {
	if log == nil {
		log = logger.GetLogger("auth")
	}
	return &Authenticator{
		verifier:  verifier,
		blacklist: blacklist,
		public:    NewPathMatcher(cfg.PublicPaths),
		log:       log,
	}
}

// Resolve runs the state machine for one request.
// Identity is set only for StateAuthenticated, err only for StateRejected.
func (a *Authenticator) Resolve(ctx context.Context, path, authorization string) (AuthState, *Identity, error) {
	if a.public.Match(path) {
		return StateAnonymous, nil, nil
	}

	access, ok := BearerToken(authorization)
	if !ok {
		return StateAnonymous, nil, nil
	}

	claims, err := a.verifier.Verify(ctx, access)
	if err != nil {
		return StateRejected, nil, err
	}

	revoked, err := a.blacklist.IsBlacklisted(ctx, access)
	if err != nil {
		return StateRejected, nil, err
	}
	if revoked {
		return StateRejected, nil, autherr.ErrBlacklistedCredential
	}

	return StateAuthenticated, identityFromClaims(claims, access), nil
}

// Handler returns the gin middleware
func (a *Authenticator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		state, id, err := a.Resolve(ctx, c.Request.URL.Path, c.GetHeader("Authorization"))

		switch state {
		case StateAuthenticated:
			setIdentity(c, id)
		case StateRejected:
			kind := autherr.KindOf(err)
			if kind == autherr.KindStoreUnavailable || kind == autherr.KindInternal {
				a.log.ErrorCtx(ctx, "authentication failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			} else {
				a.log.DebugCtx(ctx, "credential rejected", zap.String("path", c.Request.URL.Path), zap.String("kind", string(kind)))
			}
			httpx.Abort(c, err)
			return
		}

		c.Next()
	}
}

// Authenticate is NewAuthenticator(...).Handler() with the package logger
func Authenticate(verifier Verifier, blacklist BlacklistChecker, cfg AuthConfig) gin.HandlerFunc {
	return NewAuthenticator(verifier, blacklist, cfg, nil).Handler()
}
