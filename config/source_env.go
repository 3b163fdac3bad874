package config

import (
	"os"
	"strings"
)

// EnvSource reads environment variables.
//
// With bindings only the bound variables are read, under their exact names
// when the source has no prefix. Without bindings every PREFIX_ variable is
// mapped to a key: "__" separates levels, so AUTHD_REDIS__POOL_SIZE becomes
// redis.pool_size.
type EnvSource struct {
	prefix   string
	priority int
	bindings map[string]string // config key -> variable name
}

func NewEnvSource(prefix string, priority int) *EnvSource {
	return &EnvSource{
		prefix:   prefix,
		priority: priority,
		bindings: make(map[string]string),
	}
}

// AddBinding maps a config key to a variable, e.g. AddBinding("token.secret", "JWT_SECRET")
func (s *EnvSource) AddBinding(key, envKey string) {
	s.bindings[key] = envKey
}

func (s *EnvSource) Name() string {
	if s.prefix == "" {
		return "env:bindings"
	}
	return "env:" + s.prefix
}

func (s *EnvSource) Priority() int {
	return s.priority
}

func (s *EnvSource) Load() (map[string]interface{}, error) {
	result := make(map[string]interface{})

	if len(s.bindings) > 0 {
		for key, envKey := range s.bindings {
			fullEnvKey := envKey
			if s.prefix != "" && !strings.HasPrefix(envKey, s.prefix+"_") {
				fullEnvKey = s.prefix + "_" + envKey
			}
			if value, ok := os.LookupEnv(fullEnvKey); ok && value != "" {
				result[key] = value
			}
		}
		return result, nil
	}

	if s.prefix == "" {
		return result, nil
	}

	prefix := s.prefix + "_"
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, prefix))
		result[strings.ReplaceAll(key, "__", ".")] = value
	}

	return result, nil
}
