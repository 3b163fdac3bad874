// Package session holds the mutable, TTL-bounded half of authentication state:
// the current refresh credential per subject, revoked access credentials and
// cached profile snapshots.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/KOMKZ/go-yogan-tokenauth/autherr"
)

const (
	sessionPrefix   = "refreshToken:"
	blacklistPrefix = "blacklist:"
	profilePrefix   = "userProfile:"

	// BlacklistMarker is the value stored under a blacklist key
	BlacklistMarker = "logout"
)

// Profile is the cached, non-authoritative snapshot of a user's public profile
type Profile struct {
	SubjectID       int64  `json:"subjectId"`
	Email           string `json:"email"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// Store is the revocation and session store.
// Every failure is autherr.ErrStoreUnavailable wrapping the cause.
type Store interface {
	// PutSession overwrites the subject's current refresh credential
	PutSession(ctx context.Context, subjectID int64, refresh string, ttl time.Duration) error
	GetSession(ctx context.Context, subjectID int64) (string, bool, error)
	DeleteSession(ctx context.Context, subjectID int64) error

	// SwapSession replaces the session only if it still equals expected
	SwapSession(ctx context.Context, subjectID int64, expected, next string, ttl time.Duration) (bool, error)
	// DeleteSessionIf deletes the session only if it still equals expected
	DeleteSessionIf(ctx context.Context, subjectID int64, expected string) (bool, error)

	// Blacklist revokes an access credential for ttl. A non-positive ttl is a no-op.
	Blacklist(ctx context.Context, access string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, access string) (bool, error)

	// InvalidateAll deletes the session and, when access is non-empty, blacklists it for ttl
	InvalidateAll(ctx context.Context, subjectID int64, access string, ttl time.Duration) error

	CacheProfile(ctx context.Context, subjectID int64, profile Profile, ttl time.Duration) error
	GetCachedProfile(ctx context.Context, subjectID int64) (*Profile, bool, error)
	EvictProfile(ctx context.Context, subjectID int64) error
	// EvictAll removes every per-subject cache entry
	EvictAll(ctx context.Context, subjectID int64) error

	Close() error
}

// Config configures both store implementations
type Config struct {
	Driver           string        `yaml:"driver" mapstructure:"driver"`         // redis / memory
	KeyPrefix        string        `yaml:"key_prefix" mapstructure:"key_prefix"` // optional namespace before every key
	OperationTimeout time.Duration `yaml:"operation_timeout" mapstructure:"operation_timeout"`
	ProfileTTL       time.Duration `yaml:"profile_ttl" mapstructure:"profile_ttl"`
}

func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = "redis"
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 500 * time.Millisecond
	}
	if c.ProfileTTL == 0 {
		c.ProfileTTL = 7 * 24 * time.Hour
	}
}

func (c Config) Validate() error {
	if c.Driver != "redis" && c.Driver != "memory" {
		return fmt.Errorf("session: driver must be redis or memory, got %q", c.Driver)
	}
	if c.OperationTimeout < 0 {
		return fmt.Errorf("session: operation timeout must not be negative")
	}
	return nil
}

type keyspace struct {
	prefix string
}

func (k keyspace) session(subjectID int64) string {
	return k.prefix + sessionPrefix + strconv.FormatInt(subjectID, 10)
}

func (k keyspace) blacklist(access string) string {
	return k.prefix + blacklistPrefix + access
}

func (k keyspace) profile(subjectID int64) string {
	return k.prefix + profilePrefix + strconv.FormatInt(subjectID, 10)
}

// subjectCacheKeys lists every cache key EvictAll removes
func (k keyspace) subjectCacheKeys(subjectID int64) []string {
	return []string{k.profile(subjectID)}
}

func unavailable(op string, err error) error {
	return autherr.ErrStoreUnavailable.Wrap(fmt.Errorf("%s: %w", op, err))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
