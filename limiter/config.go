// Package limiter throttles credential endpoints with a token bucket per client.
package limiter

import (
	"fmt"
	"time"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config configures the bucket shared by every limited path
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Store is memory or redis. Empty follows the session driver.
	Store string `mapstructure:"store"`

	// Rate is the refill speed in requests per second, Burst the bucket size
	Rate  float64 `mapstructure:"rate"`
	Burst int64   `mapstructure:"burst"`

	// Paths are PathMatcher patterns of the limited routes
	Paths []string `mapstructure:"paths"`

	KeyPrefix string `mapstructure:"key_prefix"`
}

// DefaultConfig allows bursts of 10 and one request every 5 seconds after that
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Rate:      0.2,
		Burst:     10,
		Paths:     []string{"/api/auth/login", "/api/auth/refresh"},
		KeyPrefix: "rateLimit:",
	}
}

func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Rate <= 0 {
		c.Rate = d.Rate
	}
	if c.Burst <= 0 {
		c.Burst = d.Burst
	}
	if len(c.Paths) == 0 {
		c.Paths = d.Paths
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = d.KeyPrefix
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("limiter: store must be memory or redis, got %q", c.Store)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("limiter: rate must be positive, got %v", c.Rate)
	}
	if c.Burst < 1 {
		return fmt.Errorf("limiter: burst must be at least 1, got %d", c.Burst)
	}
	return nil
}

// idleTTL is how long a bucket takes to refill completely, after which
// its state is indistinguishable from a fresh one
func (c Config) idleTTL() time.Duration {
	d := time.Duration(float64(c.Burst) / c.Rate * float64(time.Second))
	if d < time.Second {
		d = time.Second
	}
	return d
}
