package redis

import (
	"fmt"
	"time"
)

// Config describes the Redis deployment backing the session store
type Config struct {
	// Mode: "standalone" or "cluster"
	Mode string `mapstructure:"mode"`

	// Standalone uses the first address, cluster uses all of them
	Addrs []string `mapstructure:"addrs"`

	// Addr is shorthand for a single address
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`

	// DB is only valid in standalone mode
	DB int `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ConnectAttempts bounds the startup ping, ConnectBackoff is the first wait between tries
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `mapstructure:"connect_backoff"`
}

func (c *Config) Validate() error {
	if c.Mode != "standalone" && c.Mode != "cluster" {
		return fmt.Errorf("invalid mode: %s (must be standalone or cluster)", c.Mode)
	}
	if len(c.Addrs) == 0 {
		return fmt.Errorf("addrs cannot be empty")
	}
	if c.Mode == "standalone" && (c.DB < 0 || c.DB > 15) {
		return fmt.Errorf("db must be between 0 and 15, got: %d", c.DB)
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must be >= 0, got: %d", c.PoolSize)
	}
	return nil
}

func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = "standalone"
	}
	if c.Addr != "" && len(c.Addrs) == 0 {
		c.Addrs = []string{c.Addr}
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 2 * time.Second
	}
	// session store operations carry their own 500ms budget
	if c.ReadTimeout == 0 {
		c.ReadTimeout = time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = time.Second
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 3
	}
	if c.ConnectBackoff == 0 {
		c.ConnectBackoff = 200 * time.Millisecond
	}
}
