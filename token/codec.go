// Package token issues and verifies HS256 signed credentials.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClockSkew is the tolerance applied to exp during verification
const ClockSkew = time.Second

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Codec signs and verifies credentials with one process-wide secret
type Codec struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	metrics    *Metrics
	logger     *logger.CtxZapLogger
	parser     *jwt.Parser
}

// Option customizes a Codec
type Option func(*Codec)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithMetrics attaches registered metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Codec) { c.metrics = m }
}

// WithLogger replaces the default "token" module logger
func WithLogger(l *logger.CtxZapLogger) Option {
	return func(c *Codec) { c.logger = l }
}

// NewCodec decodes the secret once and returns a ready codec
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := cfg.decodeSecret()
	if err != nil {
		return nil, err
	}

	c := &Codec{
		key:        key,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.GetLogger("token")
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

func (c *Codec) AccessLifetime() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshLifetime() time.Duration { return c.refreshTTL }

// Now returns the codec clock
func (c *Codec) Now() time.Time { return c.now() }

// IssueAccess issues a credential with the access lifetime
func (c *Codec) IssueAccess(ctx context.Context, p Principal) (Issued, error) {
	return c.issue(ctx, p, c.accessTTL, KindAccess)
}

// IssueRefresh issues a credential with the refresh lifetime
func (c *Codec) IssueRefresh(ctx context.Context, p Principal) (Issued, error) {
	return c.issue(ctx, p, c.refreshTTL, KindRefresh)
}

// Issue signs a credential for p valid for lifetime from now, rounded down to whole seconds
func (c *Codec) Issue(ctx context.Context, p Principal, lifetime time.Duration) (Issued, error) {
	return c.issue(ctx, p, lifetime, "custom")
}

func (c *Codec) issue(ctx context.Context, p Principal, lifetime time.Duration, kind string) (Issued, error) {
	if lifetime < time.Second {
		return Issued{}, fmt.Errorf("token: lifetime must be at least 1s, got %s", lifetime)
	}

	// NumericDate has second precision, so timestamps are truncated up front
	now := c.now().Truncate(time.Second)
	expiresAt := now.Add(lifetime.Truncate(time.Second))

	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}

	claims := wireClaims{
		Email: p.Email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.SubjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		c.logger.ErrorCtx(ctx, "failed to sign token",
			zap.Error(err),
			zap.Int64("subject_id", p.SubjectID),
		)
		return Issued{}, fmt.Errorf("sign token failed: %w", err)
	}

	c.metrics.RecordIssued(ctx, kind)
	c.logger.DebugCtx(ctx, "token issued",
		zap.String("kind", kind),
		zap.Int64("subject_id", p.SubjectID),
		zap.Duration("lifetime", lifetime),
	)

	return Issued{Token: signed, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, algorithm and expiry (with ClockSkew) and returns the claims.
// Failures are autherr.ErrExpiredCredential or autherr.ErrInvalidCredential.
func (c *Codec) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	start := time.Now()
	claims, err := c.verify(tokenString)
	c.metrics.RecordVerified(ctx, autherr.KindOf(err), time.Since(start))

	if err != nil {
		c.logger.DebugCtx(ctx, "token verification failed",
			zap.String("reason", string(autherr.KindOf(err))),
			zap.Int("token_length", len(tokenString)),
		)
		return nil, err
	}
	return claims, nil
}

func (c *Codec) verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, autherr.ErrInvalidCredential
	}

	wire := &wireClaims{}
	_, err := c.parser.ParseWithClaims(tokenString, wire, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, autherr.ErrExpiredCredential.Wrap(err)
		}
		return nil, autherr.ErrInvalidCredential.Wrap(err)
	}

	subjectID, err := strconv.ParseInt(wire.Subject, 10, 64)
	if err != nil {
		return nil, autherr.ErrInvalidCredential.Wrap(fmt.Errorf("subject %q is not numeric", wire.Subject))
	}

	claims := &Claims{
		SubjectID: subjectID,
		Email:     wire.Email,
		Roles:     wire.Roles,
		ID:        wire.ID,
		ExpiresAt: wire.ExpiresAt.Time,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	return claims, nil
}
