package health

import "time"

type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() Config {
	return Config{Timeout: 3 * time.Second}
}
