package config

import (
	"fmt"

	"github.com/samber/do/v2"
)

// ProvideLoaderOptions configures ProvideLoader
type ProvideLoaderOptions struct {
	ConfigPath string
	EnvPrefix  string
	Bindings   map[string]string // config key -> unprefixed variable
	Flags      interface{}
}

// ProvideLoader registers the Loader as the root of the injector graph
//
//	do.Provide(injector, config.ProvideLoader(config.ProvideLoaderOptions{
//	    ConfigPath: "./configs",
//	    EnvPrefix:  "AUTHD",
//	}))
func ProvideLoader(opts ProvideLoaderOptions) func(do.Injector) (*Loader, error) {
	return func(i do.Injector) (*Loader, error) {
		b := NewLoaderBuilder().
			WithConfigPath(opts.ConfigPath).
			WithEnvPrefix(opts.EnvPrefix).
			WithFlags(opts.Flags)
		for key, envKey := range opts.Bindings {
			b.WithBinding(key, envKey)
		}

		loader, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("config loader build failed: %w", err)
		}
		return loader, nil
	}
}
