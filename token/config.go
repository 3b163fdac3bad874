package token

import (
	"encoding/base64"
	"fmt"
	"time"
)

// minSecretBytes is the smallest HS256 key accepted (256 bits)
const minSecretBytes = 32

const minLifetimeMs = int64(time.Second / time.Millisecond)

// Config holds the signing secret and credential lifetimes.
// Lifetimes are expressed in milliseconds to match JWT_*_EXPIRATION. JWT
// timestamps have second precision, so a lifetime is rounded down to whole
// seconds when issued and must be at least 1000 ms.
type Config struct {
	Secret                   string `yaml:"secret" mapstructure:"secret"` // base64 encoded HMAC key
	AccessTokenExpirationMs  int64  `yaml:"access_token_expiration" mapstructure:"access_token_expiration"`
	RefreshTokenExpirationMs int64  `yaml:"refresh_token_expiration" mapstructure:"refresh_token_expiration"`
}

// ApplyDefaults sets 1h access and 7d refresh lifetimes when unset
func (c *Config) ApplyDefaults() {
	if c.AccessTokenExpirationMs == 0 {
		c.AccessTokenExpirationMs = time.Hour.Milliseconds()
	}
	if c.RefreshTokenExpirationMs == 0 {
		c.RefreshTokenExpirationMs = (7 * 24 * time.Hour).Milliseconds()
	}
}

// Validate checks the secret decodes to a usable key and lifetimes last at least a second
func (c Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("token: secret is required")
	}
	if _, err := c.decodeSecret(); err != nil {
		return err
	}
	if c.AccessTokenExpirationMs < minLifetimeMs {
		return fmt.Errorf("token: access token expiration must be at least %d ms, got %d", minLifetimeMs, c.AccessTokenExpirationMs)
	}
	if c.RefreshTokenExpirationMs < minLifetimeMs {
		return fmt.Errorf("token: refresh token expiration must be at least %d ms, got %d", minLifetimeMs, c.RefreshTokenExpirationMs)
	}
	return nil
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpirationMs) * time.Millisecond
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpirationMs) * time.Millisecond
}

func (c Config) decodeSecret() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.Secret)
	if err != nil {
		return nil, fmt.Errorf("token: secret is not valid base64: %w", err)
	}
	if len(key) < minSecretBytes {
		return nil, fmt.Errorf("token: secret must decode to at least %d bytes, got %d", minSecretBytes, len(key))
	}
	return key, nil
}
