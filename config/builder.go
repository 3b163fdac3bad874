package config

import (
	"os"
	"path/filepath"
)

// LoaderBuilder assembles the standard source stack
type LoaderBuilder struct {
	configPath string
	envPrefix  string
	bindings   map[string]string
	flags      interface{}
}

func NewLoaderBuilder() *LoaderBuilder {
	return &LoaderBuilder{bindings: make(map[string]string)}
}

// WithConfigPath sets the directory holding config.yaml and <env>.yaml
func (b *LoaderBuilder) WithConfigPath(path string) *LoaderBuilder {
	b.configPath = path
	return b
}

func (b *LoaderBuilder) WithEnvPrefix(prefix string) *LoaderBuilder {
	b.envPrefix = prefix
	return b
}

// WithBinding reads key from the unprefixed variable envKey
func (b *LoaderBuilder) WithBinding(key, envKey string) *LoaderBuilder {
	b.bindings[key] = envKey
	return b
}

func (b *LoaderBuilder) WithFlags(flags interface{}) *LoaderBuilder {
	b.flags = flags
	return b
}

func (b *LoaderBuilder) Build() (*Loader, error) {
	loader := NewLoader()

	if b.configPath != "" {
		loader.AddSource(NewFileSource(filepath.Join(b.configPath, "config.yaml"), 10))
		if env := GetEnv(); env != "" {
			loader.AddSource(NewFileSource(filepath.Join(b.configPath, env+".yaml"), 20))
		}
	}

	if b.envPrefix != "" {
		loader.AddSource(NewEnvSource(b.envPrefix, 50))
	}

	if len(b.bindings) > 0 {
		bound := NewEnvSource("", 60)
		for key, envKey := range b.bindings {
			bound.AddBinding(key, envKey)
		}
		loader.AddSource(bound)
	}

	if b.flags != nil {
		loader.AddSource(NewFlagSource(b.flags, 100))
	}

	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// GetEnv returns the deployment environment: APP_ENV, then ENV, then "dev"
func GetEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}
